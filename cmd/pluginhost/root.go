// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/holomush/pluginhost/internal/config"
	"github.com/holomush/pluginhost/internal/logging"
)

// NewRootCmd creates the root command for the pluginhost CLI.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "pluginhost",
		Short: "pluginhost - plugin discovery and lifecycle host",
		Long: `pluginhost scans a plugin root for directories holding a plugin manifest,
loads each plugin through its Lua or binary runtime, activates it, and
deactivates every plugin when the host shuts down.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/pluginhost/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	load := func(c *cobra.Command) (*config.Config, error) {
		return loadConfig(configFile, c)
	}

	cmd.AddCommand(NewRunCmd(load))
	cmd.AddCommand(NewListCmd(load))
	cmd.AddCommand(NewValidateCmd(load))
	cmd.AddCommand(NewSchemaCmd(load))

	return cmd
}

// configLoader loads the configuration for a command.
type configLoader func(cmd *cobra.Command) (*config.Config, error)

// loadConfig loads configuration and fills the host version from the build
// when neither the file nor the flags set one.
func loadConfig(path string, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Host.Version == "" {
		if v, err := semver.NewVersion(version); err == nil {
			cfg.Host.Version = v.String()
		}
	}
	return cfg, nil
}

// newLogger builds the command logger writing to w.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	return logging.Setup("pluginhost", version, cfg.Log.Format, cfg.Log.Level, w)
}
