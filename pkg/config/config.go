// Package config provides a reusable loader for hodu-plugind's
// bootstrap configuration: request timeouts, the metrics/health bind
// address, and log level, loaded from a YAML file plus environment
// overrides.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"hodu/pkg/utils"
)

// Config is the unified bootstrap configuration for a plugin host
// process (spec §4.5, §6).
type Config struct {
	RPC struct {
		// DefaultTimeoutMS bounds any request that does not name a
		// per-method override (spec §5 "Timeouts").
		DefaultTimeoutMS int            `mapstructure:"default_timeout_ms" json:"default_timeout_ms"`
		MethodTimeoutMS  map[string]int `mapstructure:"method_timeout_ms" json:"method_timeout_ms"`
		// ProgressRateHz throttles notify_progress; notify_log is not
		// throttled.
		ProgressRateHz float64 `mapstructure:"progress_rate_hz" json:"progress_rate_hz"`
	} `mapstructure:"rpc" json:"rpc"`

	Metrics struct {
		Enabled    bool   `mapstructure:"enabled" json:"enabled"`
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"metrics" json:"metrics"`

	Manifest struct {
		Path      string `mapstructure:"path" json:"path"`
		CacheRoot string `mapstructure:"cache_root" json:"cache_root"`
	} `mapstructure:"manifest" json:"manifest"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads hodu's bootstrap configuration, merging an optional
// environment-specific override file (e.g. "production" ->
// config/production.yaml) over config/default.yaml, both looked up
// relative to the working directory, then applies
// environment-variable overrides. The resulting configuration is
// stored in AppConfig and returned.
func Load(env string) (*Config, error) {
	// .env is best-effort: a missing file is not an error, it just
	// means overrides come from the real environment only.
	_ = godotenv.Load()

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	setDefaults()
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("HODU")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the HODU_ENV environment
// variable, defaulting to the unadorned "default" file.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("HODU_ENV", ""))
}

func setDefaults() {
	viper.SetDefault("rpc.default_timeout_ms", 30000)
	viper.SetDefault("rpc.progress_rate_hz", 10.0)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.listen_addr", "127.0.0.1:9090")
	viper.SetDefault("manifest.cache_root", "~/.hodu/cache")
	viper.SetDefault("logging.level", "info")
}
