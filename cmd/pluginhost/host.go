// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/pluginhost/internal/config"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/plugin/goplugin"
	"github.com/holomush/pluginhost/internal/plugin/lua"
)

// newLoader creates a loader with the Lua and binary runtimes.
func newLoader(cfg *config.Config, logger *slog.Logger) *plugin.Loader {
	processLogger := hclog.New(&hclog.LoggerOptions{
		Name:       "plugin",
		Level:      hclog.LevelFromString(cfg.Log.Level),
		JSONFormat: cfg.Log.Format == "json",
		Output:     os.Stderr,
	})
	return plugin.NewLoader(
		lua.NewRuntime(lua.WithLogger(logger)),
		goplugin.NewRuntime(goplugin.WithClientFactory(&goplugin.DefaultClientFactory{Logger: processLogger})),
	)
}

// newManager builds the plugin manager from configuration. reg may be nil
// to disable metrics.
func newManager(cfg *config.Config, host plugin.HostContext, logger *slog.Logger, reg prometheus.Registerer) (*plugin.Manager, error) {
	disabled, err := plugin.NewDisabledSet(cfg.Plugins.Disabled)
	if err != nil {
		return nil, err
	}

	opts := []plugin.ManagerOption{
		plugin.WithLoader(newLoader(cfg, logger)),
		plugin.WithPrefix(cfg.Plugins.Prefix),
		plugin.WithDisabled(disabled),
		plugin.WithLifecycleTimeout(cfg.Plugins.Timeout),
		plugin.WithLogger(logger),
	}
	if v := cfg.HostVersion(); v != nil {
		opts = append(opts, plugin.WithHostVersion(v))
	}
	if reg != nil {
		opts = append(opts, plugin.WithMetrics(plugin.NewMetrics(reg)))
	}
	return plugin.NewManager(host, opts...), nil
}
