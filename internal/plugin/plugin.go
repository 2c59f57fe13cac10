// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin provides plugin discovery and lifecycle control.
//
// A plugin is a directory holding a manifest (plugin.json or plugin.yaml)
// and an entry point. The Manager validates the manifest, asks the Loader to
// import the entry point through a Runtime, activates the resulting instance
// and keeps it in a Registry until Teardown.
package plugin

import (
	"context"
)

// HostContext is passed unchanged to every plugin's Activate call.
// Its concrete shape belongs to the host application.
type HostContext any

// ValueProvider is implemented by host contexts that can describe themselves
// as plain values. Runtimes that cross a process boundary send these values
// in place of the opaque context.
type ValueProvider interface {
	Values() map[string]any
}

// Subscriber is implemented by host contexts that accept cleanup work from
// plugins. dispose runs once, either when unsubscribe is called or when the
// host disposes the context.
type Subscriber interface {
	Subscribe(dispose func()) (unsubscribe func())
}

// Plugin is the capability contract every loaded plugin satisfies.
type Plugin interface {
	// ID returns the plugin's unique identity.
	ID() string
	// Name returns the human-readable name.
	Name() string
	// Description returns a short description.
	Description() string
	// Version returns the declared version string.
	Version() string
	// Activate is called exactly once after the plugin has been loaded.
	Activate(ctx context.Context, host HostContext) error
	// Deactivate is called exactly once during host teardown.
	Deactivate(ctx context.Context) error
}

// Releaser is implemented by instances that hold runtime resources (Lua
// states, plugin processes) that must be freed when the instance is
// discarded without ever being activated.
type Releaser interface {
	Release()
}

// RuntimeKind identifies the runtime that imports an entry point.
type RuntimeKind string

// Runtimes supported by the loader.
const (
	RuntimeLua    RuntimeKind = "lua"
	RuntimeBinary RuntimeKind = "binary"
)

// Runtime imports an entry point and constructs the exported plugin.
//
// Implementations locate the default export first and fall back to the
// named export, construct it with no arguments, and reject objects that do
// not provide the full capability contract.
type Runtime interface {
	// Kind returns the runtime identifier matched against Descriptor.Runtime.
	Kind() RuntimeKind
	// Load imports entryPath and returns the constructed instance.
	Load(ctx context.Context, desc *Descriptor, entryPath string) (Plugin, error)
}

// release frees runtime resources held by a discarded instance.
func release(p Plugin) {
	if r, ok := p.(Releaser); ok {
		r.Release()
	}
}
