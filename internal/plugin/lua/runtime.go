// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/pluginhost/internal/plugin"
)

// NamedExport is the global an entry point assigns when it does not return
// its plugin.
const NamedExport = "Plugin"

// Runtime imports Lua entry points.
type Runtime struct {
	factory *StateFactory
	logger  *slog.Logger
}

var _ plugin.Runtime = (*Runtime)(nil)

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the logger plugins write to through host.log.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithStateFactory replaces the factory used to create plugin states.
func WithStateFactory(f *StateFactory) RuntimeOption {
	return func(r *Runtime) {
		r.factory = f
	}
}

// NewRuntime creates a Lua runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		factory: NewStateFactory(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kind implements plugin.Runtime.
func (r *Runtime) Kind() plugin.RuntimeKind {
	return plugin.RuntimeLua
}

// Load runs the entry point in a fresh state and constructs its export.
// The state stays open for the life of the returned instance.
func (r *Runtime) Load(ctx context.Context, desc *plugin.Descriptor, entryPath string) (plugin.Plugin, error) {
	id := desc.Identity

	src, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return nil, plugin.ErrLoadFailed(id, err)
	}

	L, err := r.factory.NewState(ctx)
	if err != nil {
		return nil, plugin.ErrLoadFailed(id, err)
	}

	p, err := r.load(L, desc, entryPath, src)
	if err != nil {
		L.Close()
		return nil, err
	}
	L.RemoveContext()
	return p, nil
}

func (r *Runtime) load(L *lua.LState, desc *plugin.Descriptor, entryPath string, src []byte) (*luaPlugin, error) {
	id := desc.Identity

	chunk, err := L.Load(bytes.NewReader(src), filepath.Base(entryPath))
	if err != nil {
		return nil, plugin.ErrLoadFailed(id, err)
	}
	L.Push(chunk)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, plugin.ErrLoadFailed(id, err)
	}
	export := L.Get(-1)
	L.Pop(1)

	if export == lua.LNil {
		export = L.GetGlobal(NamedExport)
	}
	if export == lua.LNil {
		return nil, plugin.ErrNoExport(id)
	}

	instance, err := construct(L, export)
	if err != nil {
		return nil, plugin.ErrLoadFailed(id, err)
	}

	self, ok := instance.(*lua.LTable)
	if !ok {
		return nil, plugin.ErrInvalidInstance(id, "export constructed a "+instance.Type().String()+", not a table")
	}

	p := &luaPlugin{
		state:  L,
		self:   self,
		logger: r.logger.With("plugin", id, "runtime", string(plugin.RuntimeLua)),
	}
	if reason := p.bind(); reason != "" {
		return nil, plugin.ErrInvalidInstance(id, reason)
	}
	return p, nil
}

// construct turns an export into an instance. Functions are called with no
// arguments, tables with a new function are called as new(class), and other
// tables are the instance itself.
func construct(L *lua.LState, export lua.LValue) (lua.LValue, error) {
	switch v := export.(type) {
	case *lua.LFunction:
		return callOne(L, v)
	case *lua.LTable:
		if ctor, ok := L.GetField(v, "new").(*lua.LFunction); ok {
			return callOne(L, ctor, v)
		}
		return v, nil
	default:
		return nil, oops.Errorf("export is a %s, not a function or table", export.Type())
	}
}

func callOne(L *lua.LState, fn *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}
