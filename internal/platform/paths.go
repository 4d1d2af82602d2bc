// Package platform resolves per-user locations for tavla's files.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName is the default directory and file stem for tavla state.
const AppName = "tavla"

// Paths lists where tavla keeps its config file, server database and logs.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Options adjusts path resolution.
type Options struct {
	AppName string
	DevMode bool
}

// baseOverrides names the env vars that replace the OS config and data roots.
var baseOverrides = map[string][2]string{
	"linux":   {"XDG_CONFIG_HOME", "XDG_DATA_HOME"},
	"windows": {"APPDATA", "LOCALAPPDATA"},
}

// DefaultPaths resolves paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: AppName})
}

// DefaultPathsWithOptions resolves paths from the current OS and environment.
// Dev mode appends "-dev" so development runs never touch real data.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = AppName
	}
	if opts.DevMode {
		name += "-dev"
	}

	configRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataRoot, err := defaultDataRoot(runtime.GOOS, configRoot)
	if err != nil {
		return Paths{}, err
	}

	env := map[string]string{}
	for _, names := range baseOverrides {
		for _, key := range names {
			env[key] = os.Getenv(key)
		}
	}
	return PathsFor(runtime.GOOS, env, configRoot, dataRoot, name)
}

// defaultDataRoot picks the OS data root before env overrides apply.
func defaultDataRoot(goos, configRoot string) (string, error) {
	switch goos {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			return v, nil
		}
	}
	return configRoot, nil
}

// PathsFor is the pure resolver behind DefaultPathsWithOptions.
func PathsFor(goos string, env map[string]string, configRoot, dataRoot, appName string) (Paths, error) {
	if configRoot == "" || dataRoot == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}
	if keys, ok := baseOverrides[goos]; ok {
		if v := env[keys[0]]; v != "" {
			configRoot = v
		}
		if v := env[keys[1]]; v != "" {
			dataRoot = v
		}
	}

	dataDir := filepath.Join(dataRoot, appName)
	return Paths{
		ConfigPath: filepath.Join(configRoot, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(dataDir, "log"),
	}, nil
}
