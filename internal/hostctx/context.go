// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package hostctx provides the host context handed to every plugin on
// activation.
package hostctx

import (
	"log/slog"
	"sync"

	"github.com/holomush/pluginhost/internal/plugin"
)

var (
	_ plugin.ValueProvider = (*Context)(nil)
	_ plugin.Subscriber    = (*Context)(nil)
)

// Options configures a Context.
type Options struct {
	HostVersion string
	PluginsDir  string
	DataDir     string
	Logger      *slog.Logger
}

// Context describes the running host to plugins. Plugins register cleanup
// through Subscribe; the host calls Dispose after teardown, which runs
// whatever plugins left registered.
type Context struct {
	opts Options

	mu          sync.Mutex
	nextID      uint64
	disposables map[uint64]func()
	order       []uint64
	disposed    bool
}

// New creates a host context.
func New(opts Options) *Context {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Context{
		opts:        opts,
		disposables: make(map[uint64]func()),
	}
}

// Values returns the context as plain values for runtimes that cross a
// process or language boundary.
func (c *Context) Values() map[string]any {
	return map[string]any{
		"host_version": c.opts.HostVersion,
		"plugins_dir":  c.opts.PluginsDir,
		"data_dir":     c.opts.DataDir,
	}
}

// Subscribe registers dispose to run when the context is disposed and
// returns a function that runs it early and removes it. After Dispose,
// Subscribe runs dispose immediately.
func (c *Context) Subscribe(dispose func()) (unsubscribe func()) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		c.run(dispose)
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.disposables[id] = dispose
	c.order = append(c.order, id)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		fn, ok := c.disposables[id]
		delete(c.disposables, id)
		c.mu.Unlock()
		if ok {
			c.run(fn)
		}
	}
}

// Dispose runs every registered disposable in reverse order of
// registration. Later calls do nothing.
func (c *Context) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	order, fns := c.order, c.disposables
	c.order, c.disposables = nil, make(map[uint64]func())
	c.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		if fn, ok := fns[order[i]]; ok {
			c.run(fn)
		}
	}
}

func (c *Context) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.Error("disposable panicked", "panic", r)
		}
	}()
	fn()
}
