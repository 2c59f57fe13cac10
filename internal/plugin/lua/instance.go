// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/pluginhost/internal/plugin"
)

// luaPlugin is a plugin instance backed by its own Lua state.
// LState is not safe for concurrent use, so every call holds mu.
type luaPlugin struct {
	mu     sync.Mutex
	state  *lua.LState
	self   *lua.LTable
	logger *slog.Logger

	id          string
	name        string
	description string
	version     string
	activate    *lua.LFunction
	deactivate  *lua.LFunction

	disposables []*lua.LFunction
	unsubscribe func()
}

var (
	_ plugin.Plugin   = (*luaPlugin)(nil)
	_ plugin.Releaser = (*luaPlugin)(nil)
)

// bind reads the instance fields, returning why the instance is unusable
// or "" if it is complete.
func (p *luaPlugin) bind() string {
	L := p.state
	strs := []struct {
		key string
		dst *string
	}{
		{"id", &p.id},
		{"name", &p.name},
		{"description", &p.description},
		{"version", &p.version},
	}
	for _, f := range strs {
		v, ok := L.GetField(p.self, f.key).(lua.LString)
		if !ok {
			return f.key + " must be a string"
		}
		*f.dst = string(v)
	}

	var ok bool
	if p.activate, ok = L.GetField(p.self, "activate").(*lua.LFunction); !ok {
		return "activate must be a function"
	}
	if p.deactivate, ok = L.GetField(p.self, "deactivate").(*lua.LFunction); !ok {
		return "deactivate must be a function"
	}
	return ""
}

func (p *luaPlugin) ID() string          { return p.id }
func (p *luaPlugin) Name() string        { return p.name }
func (p *luaPlugin) Description() string { return p.description }
func (p *luaPlugin) Version() string     { return p.version }

// Activate calls activate(self, host). When the host accepts
// subscriptions the plugin's disposables are also registered with it.
func (p *luaPlugin) Activate(ctx context.Context, host plugin.HostContext) error {
	var unsubscribe func()
	if sub, ok := host.(plugin.Subscriber); ok {
		// Subscribe before taking mu: a disposed host calls hostDisposed at once.
		unsubscribe = sub.Subscribe(p.hostDisposed)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == nil {
		return p.closedError("activate")
	}
	p.unsubscribe = unsubscribe

	L := p.state
	L.SetContext(ctx)
	defer L.RemoveContext()

	if err := L.CallByParam(lua.P{Fn: p.activate, NRet: 0, Protect: true}, p.self, p.hostTable(host, unsubscribe != nil)); err != nil {
		return oops.In("lua").
			With("plugin", p.id).
			With("operation", "activate").
			Wrap(err)
	}
	return nil
}

// Deactivate calls deactivate(self), runs the plugin's disposables and
// closes the state.
func (p *luaPlugin) Deactivate(ctx context.Context) error {
	p.mu.Lock()
	if p.state == nil {
		p.mu.Unlock()
		return p.closedError("deactivate")
	}

	L := p.state
	L.SetContext(ctx)
	err := L.CallByParam(lua.P{Fn: p.deactivate, NRet: 0, Protect: true}, p.self)
	p.runDisposablesLocked()
	L.RemoveContext()
	unsubscribe := p.closeLocked()
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	if err != nil {
		return oops.In("lua").
			With("plugin", p.id).
			With("operation", "deactivate").
			Wrap(err)
	}
	return nil
}

// Release runs the plugin's disposables and closes the state without
// calling deactivate.
func (p *luaPlugin) Release() {
	p.mu.Lock()
	if p.state != nil {
		p.runDisposablesLocked()
	}
	unsubscribe := p.closeLocked()
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// hostDisposed runs the plugin's disposables when the host context is
// disposed while the plugin is still open.
func (p *luaPlugin) hostDisposed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != nil {
		p.runDisposablesLocked()
	}
}

// runDisposablesLocked calls the functions passed to host.subscribe, most
// recent first. Each runs once.
func (p *luaPlugin) runDisposablesLocked() {
	for n := len(p.disposables); n > 0; n = len(p.disposables) {
		fn := p.disposables[n-1]
		p.disposables = p.disposables[:n-1]
		if err := p.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
			p.logger.Warn("plugin disposable failed", "error", err)
		}
	}
}

// closeLocked closes the state and hands back the host unsubscribe
// function, which must be called without holding mu.
func (p *luaPlugin) closeLocked() (unsubscribe func()) {
	if p.state != nil {
		p.state.Close()
		p.state = nil
	}
	p.disposables = nil
	unsubscribe, p.unsubscribe = p.unsubscribe, nil
	return unsubscribe
}

func (p *luaPlugin) closedError(op string) error {
	return oops.In("lua").
		With("plugin", p.id).
		With("operation", op).
		Errorf("lua state is closed")
}

// hostTable builds the table passed to activate. host.context wraps the
// opaque host value, host.values holds ValueProvider values and host.log
// writes to the plugin logger. host.subscribe is present only when the host
// accepts subscriptions.
func (p *luaPlugin) hostTable(host plugin.HostContext, subscribe bool) *lua.LTable {
	L := p.state
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(p.id))

	ud := L.NewUserData()
	ud.Value = host
	L.SetField(t, "context", ud)

	if vp, ok := host.(plugin.ValueProvider); ok {
		L.SetField(t, "values", toLua(L, vp.Values()))
	} else {
		L.SetField(t, "values", L.NewTable())
	}

	L.SetField(t, "log", L.NewFunction(p.luaLog))
	if subscribe {
		L.SetField(t, "subscribe", L.NewFunction(p.luaSubscribe))
	}
	return t
}

// luaSubscribe implements host.subscribe(fn). fn runs once when the plugin
// is deactivated or released, or when the host context is disposed first.
func (p *luaPlugin) luaSubscribe(L *lua.LState) int {
	fn := L.CheckFunction(L.GetTop())
	p.disposables = append(p.disposables, fn)
	return 0
}

// luaLog implements host.log(level, msg). It also accepts host:log(level, msg).
func (p *luaPlugin) luaLog(L *lua.LState) int {
	base := 1
	if _, ok := L.Get(1).(*lua.LTable); ok {
		base = 2
	}
	level := L.OptString(base, "info")
	msg := L.OptString(base+1, "")

	p.logger.Log(context.Background(), parseLevel(level), msg)
	return 0
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// toLua converts plain Go values to Lua values. Unsupported types become
// their fmt representation.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []string:
		t := L.NewTable()
		for _, s := range val {
			t.Append(lua.LString(s))
		}
		return t
	case []any:
		t := L.NewTable()
		for _, item := range val {
			t.Append(toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			L.SetField(t, k, toLua(L, val[k]))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}
