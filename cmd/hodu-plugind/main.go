// Command hodu-plugind is a plugin host process (spec §4.5, §6): it
// speaks line-delimited JSON-RPC over stdio, advertises the six
// format./backend. methods a manifest declares, and exposes Prometheus
// metrics plus a health check over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hodu/pkg/config"
	"hodu/pkg/manifest"
	"hodu/pkg/metrics"
	"hodu/pkg/pluginrpc"
	"hodu/pkg/tensor"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hodu-plugind",
		Short: "run a hodu plugin host speaking JSON-RPC over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("hodu-plugind: load config: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}

	var mf *manifest.Manifest
	if cfg.Manifest.Path != "" {
		mf, err = manifest.Load(cfg.Manifest.Path)
		if err != nil {
			return fmt.Errorf("hodu-plugind: load manifest: %w", err)
		}
	}

	info := pluginrpc.InitializeInfo{
		Name:            "hodu-plugind",
		Version:         "0.1.0",
		ProtocolVersion: "1.0",
		PluginVersion:   "0.1.0",
		Capabilities: []string{
			manifest.CapabilityFormatLoadModel.String(),
			manifest.CapabilityFormatSaveModel.String(),
			manifest.CapabilityFormatLoadTensor.String(),
			manifest.CapabilityFormatSaveTensor.String(),
			manifest.CapabilityBackendRun.String(),
			manifest.CapabilityBackendBuild.String(),
		},
		Devices: []string{manifest.HostTriple()},
	}
	if mf != nil {
		info.Name = mf.Name
		info.PluginVersion = mf.Version
		info.Capabilities = mf.CapabilityStrings()
	}

	defaultTimeout := time.Duration(cfg.RPC.DefaultTimeoutMS) * time.Millisecond
	srv := pluginrpc.New(info, defaultTimeout, os.Stdout, log)
	srv.SetProgressRate(cfg.RPC.ProgressRateHz)

	rec := metrics.New()
	srv.AddPostHook(func(method, id string, success bool, errCode int, duration time.Duration) {
		rec.Observe(method, errCode, duration)
	})

	state := newPluginState()
	srv.SetState(state)

	registerHandlers(srv, cfg, state)

	if cfg.Metrics.Enabled {
		httpSrv := rec.Serve(cfg.Metrics.ListenAddr, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Shutdown(ctx, httpSrv)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx, os.Stdin)
}

// pluginState holds the in-memory model/tensor handles format.* and
// backend.* methods operate on; a handle is a generated id rather than
// a raw path, since a loaded model or tensor is consumed by later
// calls in the same session, not re-read from disk each time (spec §6
// describes the wire shape of these methods, not a storage policy).
type pluginState struct {
	mu      sync.Mutex
	models  map[string][]tensor.Node
	tensors map[string]*tensor.Tensor
}

func newPluginState() *pluginState {
	return &pluginState{
		models:  make(map[string][]tensor.Node),
		tensors: make(map[string]*tensor.Tensor),
	}
}

func registerHandlers(srv *pluginrpc.Server, cfg *config.Config, st *pluginState) {
	timeoutFor := func(method string) time.Duration {
		if ms, ok := cfg.RPC.MethodTimeoutMS[method]; ok {
			return time.Duration(ms) * time.Millisecond
		}
		return 0
	}

	srv.RegisterMethod("format.load_model", handleLoadModel(st), timeoutFor("format.load_model"))
	srv.RegisterMethod("format.save_model", handleSaveModel(st), timeoutFor("format.save_model"))
	srv.RegisterMethod("format.load_tensor", handleLoadTensor(st), timeoutFor("format.load_tensor"))
	srv.RegisterMethod("format.save_tensor", handleSaveTensor(st), timeoutFor("format.save_tensor"))
	srv.RegisterMethod("backend.run", handleBackendRun(st), timeoutFor("backend.run"))
	srv.RegisterMethod("backend.build", handleBackendBuild(st), timeoutFor("backend.build"))
}

func newHandle() string { return uuid.New().String() }
