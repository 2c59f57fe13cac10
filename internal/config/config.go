// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads host configuration from defaults, a YAML file and
// command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/xdg"
)

// Config is the host configuration.
type Config struct {
	Plugins PluginsConfig `koanf:"plugins"`
	Host    HostConfig    `koanf:"host"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// PluginsConfig controls discovery.
type PluginsConfig struct {
	Dir      string        `koanf:"dir"`
	Prefix   string        `koanf:"prefix"`
	Disabled []string      `koanf:"disabled"`
	Watch    bool          `koanf:"watch"`
	Timeout  time.Duration `koanf:"timeout"`
}

// HostConfig describes the running host.
type HostConfig struct {
	// Version is matched against plugin engines.host constraints.
	// Empty disables the check.
	Version string `koanf:"version"`
}

// LogConfig controls logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig controls the observability server.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `koanf:"addr"`
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"plugins-dir":       "plugins.dir",
	"prefix":            "plugins.prefix",
	"disable":           "plugins.disabled",
	"watch":             "plugins.watch",
	"lifecycle-timeout": "plugins.timeout",
	"host-version":      "host.version",
	"log-format":        "log.format",
	"log-level":         "log.level",
	"metrics-addr":      "metrics.addr",
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	dir, err := xdg.PluginsDir()
	if err != nil {
		dir = "plugins"
	}
	return map[string]any{
		"plugins.dir":      dir,
		"plugins.prefix":   plugin.DefaultPrefix,
		"plugins.disabled": []string{},
		"plugins.watch":    false,
		"plugins.timeout":  "0s",
		"host.version":     "",
		"log.format":       "json",
		"log.level":        "info",
		"metrics.addr":     "",
	}
}

// RegisterFlags adds the configuration flags to flags. Their defaults are
// informational; unset flags never override the file.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("plugins-dir", "", "plugin root directory (default: XDG_DATA_HOME/pluginhost/plugins)")
	flags.String("prefix", plugin.DefaultPrefix, "required plugin name prefix")
	flags.StringSlice("disable", nil, "glob patterns of plugin ids to skip")
	flags.Bool("watch", false, "discover plugins added to the root while running")
	flags.Duration("lifecycle-timeout", 0, "bound on each activate and deactivate call (0 = wait forever)")
	flags.String("host-version", "", "host version matched against engines.host")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
}

// Load builds the configuration. path names a YAML file; when path is
// empty the XDG config file is used if it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.In("config").Wrapf(err, "load defaults")
	}

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Wrapf(err, "decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return oops.In("config").With("path", path).Wrapf(err, "read config file")
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.In("config").With("path", path).Wrapf(err, "parse config file")
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Plugins.Dir == "" {
		return oops.In("config").Errorf("plugins.dir is required")
	}
	if c.Plugins.Prefix == "" {
		return oops.In("config").Errorf("plugins.prefix is required")
	}
	if c.Plugins.Timeout < 0 {
		return oops.In("config").With("timeout", c.Plugins.Timeout).Errorf("plugins.timeout must not be negative")
	}
	if c.Host.Version != "" {
		if _, err := semver.NewVersion(c.Host.Version); err != nil {
			return oops.In("config").With("version", c.Host.Version).Wrapf(err, "host.version is not a semantic version")
		}
	}
	if _, err := plugin.NewDisabledSet(c.Plugins.Disabled); err != nil {
		return oops.In("config").Wrapf(err, "plugins.disabled")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.In("config").With("format", c.Log.Format).Errorf("log.format must be 'json' or 'text'")
	}
	return nil
}

// HostVersion returns the parsed host version, or nil when unset.
func (c *Config) HostVersion() *semver.Version {
	if c.Host.Version == "" {
		return nil
	}
	v, err := semver.NewVersion(c.Host.Version)
	if err != nil {
		return nil
	}
	return v
}
