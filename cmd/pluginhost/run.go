// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/holomush/pluginhost/internal/config"
	"github.com/holomush/pluginhost/internal/hostctx"
	"github.com/holomush/pluginhost/internal/observability"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/watch"
	"github.com/holomush/pluginhost/internal/xdg"
)

const shutdownTimeout = 5 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Discover and activate plugins, then wait for a shutdown signal",
		Long: `Discover every plugin under the plugin root, activate it, and keep the
host running until SIGINT or SIGTERM. On shutdown every registered plugin
is deactivated in registration order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runHost(ctx, cfg, logger)
		},
	}
}

// runHost runs discovery and blocks until ctx is done, then tears down.
func runHost(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	dataDir, err := xdg.DataDir()
	if err != nil {
		logger.Warn("data directory unavailable", "error", err)
	}
	host := hostctx.New(hostctx.Options{
		HostVersion: cfg.Host.Version,
		PluginsDir:  cfg.Plugins.Dir,
		DataDir:     dataDir,
		Logger:      logger,
	})
	defer host.Dispose()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		ready atomic.Bool
		mgr   *plugin.Manager
		obs   *observability.Server
		reg   prometheus.Registerer
	)
	if cfg.Metrics.Addr != "" {
		obs = observability.NewServer(cfg.Metrics.Addr,
			observability.WithReadiness(ready.Load),
			observability.WithPlugins(func() []observability.PluginInfo { return pluginInfos(mgr.List()) }),
			observability.WithLogger(logger),
		)
		reg = obs.Registry()
	}

	mgr, err = newManager(cfg, host, logger, reg)
	if err != nil {
		return err
	}

	if obs != nil {
		errCh, err := obs.Start()
		if err != nil {
			return err
		}
		go func() {
			if err, ok := <-errCh; ok && err != nil {
				logger.Error("observability server failed, shutting down", "error", err)
				cancel()
			}
		}()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := obs.Stop(stopCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
	}

	// Plugins are deactivated even when discovery stops part way.
	defer mgr.Teardown(context.Background())

	if err := mgr.Discover(ctx, cfg.Plugins.Dir); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	ready.Store(true)
	logger.Info("plugin host ready", "plugins", len(mgr.List()))

	var wg sync.WaitGroup
	if cfg.Plugins.Watch {
		w := watch.New(cfg.Plugins.Dir, mgr, watch.WithLogger(logger))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				logger.Error("plugin watcher stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}

func pluginInfos(list []plugin.Plugin) []observability.PluginInfo {
	out := make([]observability.PluginInfo, 0, len(list))
	for _, p := range list {
		out = append(out, observability.PluginInfo{
			ID:          p.ID(),
			Name:        p.Name(),
			Description: p.Description(),
			Version:     p.Version(),
		})
	}
	return out
}
