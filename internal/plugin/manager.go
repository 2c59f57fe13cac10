// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/pluginhost/pkg/errutil"
)

const tracerName = "github.com/holomush/pluginhost/internal/plugin"

// Manager discovers plugins, owns their activation, and tears them down
// with the host.
//
// Manager is safe for concurrent use; Discover and Teardown passes are
// serialized.
type Manager struct {
	host        HostContext
	loader      *Loader
	registry    *Registry
	prefix      string
	disabled    *DisabledSet
	hostVersion *semver.Version
	timeout     time.Duration
	metrics     *Metrics
	logger      *slog.Logger
	tracer      trace.Tracer

	// lifecycle serializes Discover and Teardown.
	lifecycle sync.Mutex
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLoader sets the loader used to import entry points.
func WithLoader(l *Loader) ManagerOption {
	return func(m *Manager) {
		m.loader = l
	}
}

// WithPrefix overrides the reserved identity prefix.
func WithPrefix(prefix string) ManagerOption {
	return func(m *Manager) {
		m.prefix = prefix
	}
}

// WithDisabled skips candidates whose identity matches the set.
func WithDisabled(s *DisabledSet) ManagerOption {
	return func(m *Manager) {
		m.disabled = s
	}
}

// WithHostVersion enables engines.host constraint checks against v.
func WithHostVersion(v *semver.Version) ManagerOption {
	return func(m *Manager) {
		m.hostVersion = v
	}
}

// WithLifecycleTimeout bounds each Activate and Deactivate call. When the
// bound is exceeded the plugin's context is cancelled and the call counts
// as failed. Zero, the default, waits indefinitely.
func WithLifecycleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithMetrics records discovery and lifecycle metrics.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The default is
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) ManagerOption {
	return func(m *Manager) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// NewManager creates a plugin manager that hands host to every plugin it
// activates.
func NewManager(host HostContext, opts ...ManagerOption) *Manager {
	m := &Manager{
		host:     host,
		loader:   NewLoader(),
		registry: NewRegistry(),
		prefix:   DefaultPrefix,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	return m
}

// Discover scans the immediate subdirectories of root and registers every
// candidate that validates, loads and activates. Rejected candidates are
// logged and skipped. A missing root yields zero plugins; the only error
// returned is for a root that exists but cannot be read, or a cancelled
// context.
func (m *Manager) Discover(ctx context.Context, root string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	ctx, span := m.tracer.Start(ctx, "plugin.Discover",
		trace.WithAttributes(attribute.String("plugin.root", root)))
	defer span.End()

	logger := m.logger.With("scan_id", ulid.Make().String(), "root", root)

	dirs, err := candidateDirs(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("plugins directory not found, no plugins loaded")
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "plugins directory unreadable")
		return err
	}

	registered := 0
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return oops.In("plugin").With("root", root).Wrapf(err, "discovery cancelled")
		}

		outcome := m.discoverOne(ctx, logger, dir)
		m.metrics.candidate(outcome)
		if outcome == OutcomeRegistered {
			registered++
		}
	}

	total := m.registry.Len()
	m.metrics.registered(total)
	span.SetAttributes(
		attribute.Int("plugin.candidates", len(dirs)),
		attribute.Int("plugin.registered", registered),
	)
	logger.Info("plugin discovery complete",
		"registered", registered,
		"total", total)

	return nil
}

// discoverOne takes a single candidate from manifest to registration and
// returns its outcome. It never panics and never returns an error: every
// failure is logged here.
func (m *Manager) discoverOne(ctx context.Context, logger *slog.Logger, dir string) string {
	logger = logger.With("dir", filepath.Base(dir))

	ins := m.inspect(dir, nil)
	if ins.Descriptor != nil {
		logger = logger.With("plugin", ins.Descriptor.Identity)
	}
	switch ins.Outcome {
	case "":
	case OutcomeNotPlugin:
		logger.Info("skipping directory without manifest")
		return ins.Outcome
	case OutcomeInvalidManifest:
		if ins.Err != nil {
			logger.Warn("skipping plugin with unreadable manifest",
				"manifest", filepath.Base(ins.Manifest),
				"error", ins.Err)
		} else {
			logger.Warn("skipping plugin with invalid manifest",
				"manifest", filepath.Base(ins.Manifest),
				"reason", ins.Reason)
		}
		return ins.Outcome
	case OutcomeDisabled:
		logger.Info("skipping disabled plugin", "pattern", ins.Reason)
		return ins.Outcome
	case OutcomeIncompatible:
		errutil.LogWarn(logger, "skipping incompatible plugin", ins.Err)
		return ins.Outcome
	case OutcomeDuplicate:
		logger.Warn("rejecting duplicate plugin", "version", ins.Descriptor.Version, "reason", ins.Reason)
		return ins.Outcome
	}
	desc := ins.Descriptor

	start := time.Now()
	p, err := m.loader.Load(ctx, dir, desc)
	m.metrics.observe("load", start)
	if err != nil {
		errutil.LogError(logger, "failed to load plugin", err)
		return OutcomeLoadFailed
	}

	id := p.ID()
	if id != desc.Identity {
		logger.Warn("plugin instance id differs from manifest name", "instance_id", id)
		logger = logger.With("instance_id", id)
		if _, exists := m.registry.Get(id); exists {
			release(p)
			logger.Warn("rejecting duplicate plugin", "version", p.Version())
			return OutcomeDuplicate
		}
	}

	if err := m.call(ctx, "activate", func(ctx context.Context) error {
		return p.Activate(ctx, m.host)
	}); err != nil {
		release(p)
		errutil.LogError(logger, "failed to activate plugin", oops.In("plugin").
			Code(CodeActivateFailed).
			With("plugin", id).
			Wrapf(err, "activate plugin %s", id))
		return OutcomeActivateFailed
	}

	if err := m.registry.Register(p); err != nil {
		logger.Warn("rejecting duplicate plugin", "error", err)
		m.deactivate(ctx, logger, p)
		return OutcomeDuplicate
	}

	logger.Info("registered plugin",
		"version", p.Version(),
		"runtime", desc.Runtime)
	return OutcomeRegistered
}

// List returns registered plugins in registration order.
func (m *Manager) List() []Plugin {
	return m.registry.List()
}

// GetByID returns the registered plugin with the given id.
func (m *Manager) GetByID(id string) (Plugin, error) {
	p, ok := m.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// Teardown deactivates every registered plugin in registration order and
// then clears the registry. A failing plugin is logged and never stops the
// remaining deactivations.
func (m *Manager) Teardown(ctx context.Context) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	ctx, span := m.tracer.Start(ctx, "plugin.Teardown")
	defer span.End()

	plugins := m.registry.List()
	failed := 0
	for _, p := range plugins {
		if !m.deactivate(ctx, m.logger.With("plugin", p.ID()), p) {
			failed++
		}
	}

	m.registry.Clear()
	m.metrics.registered(0)

	span.SetAttributes(
		attribute.Int("plugin.deactivated", len(plugins)-failed),
		attribute.Int("plugin.failed", failed),
	)
	m.logger.Info("plugin teardown complete",
		"deactivated", len(plugins)-failed,
		"failed", failed)
}

func (m *Manager) deactivate(ctx context.Context, logger *slog.Logger, p Plugin) bool {
	err := m.call(ctx, "deactivate", p.Deactivate)
	if err != nil {
		m.metrics.deactivation("error")
		errutil.LogError(logger, "failed to deactivate plugin", oops.In("plugin").
			Code(CodeDeactivateFailed).
			With("plugin", p.ID()).
			Wrapf(err, "deactivate plugin %s", p.ID()))
		return false
	}
	m.metrics.deactivation("ok")
	logger.Debug("deactivated plugin")
	return true
}

// call runs a plugin lifecycle function, converting panics into errors and
// applying the lifecycle timeout.
func (m *Manager) call(ctx context.Context, phase string, fn func(context.Context) error) error {
	defer m.metrics.observe(phase, time.Now())

	if m.timeout <= 0 {
		return safeCall(ctx, fn)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeCall(callCtx, fn)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		return fmt.Errorf("%s did not finish within %s: %w", phase, m.timeout, callCtx.Err())
	}
}

func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn(ctx)
}
