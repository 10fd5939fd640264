package manifest

import (
	"os"
	"path/filepath"
	"strings"
)

// CacheDir expands a manifest.cache_root configuration value (default
// "~/.hodu/cache", spec §6 Environment) into an absolute path. "~"
// expands to the current user's home directory; any other value is
// used as-is.
func CacheDir(cacheRoot string) (string, error) {
	if cacheRoot == "" {
		cacheRoot = "~/.hodu/cache"
	}
	if cacheRoot == "~" || strings.HasPrefix(cacheRoot, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(cacheRoot, "~")), nil
	}
	return cacheRoot, nil
}

// BackendCacheDir returns the per-backend cache directory under
// cacheRoot, e.g. "~/.hodu/cache/cuda/" (spec §6).
func BackendCacheDir(cacheRoot, backend string) (string, error) {
	root, err := CacheDir(cacheRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, backend), nil
}
