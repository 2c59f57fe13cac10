// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugintest provides an in-process runtime and plugin fakes for
// exercising discovery and lifecycle without Lua or plugin binaries.
//
// The fake runtime reads its entry point as a list of key=value
// directives, one per line:
//
//	id=host-plugin-a        instance id (default: manifest name)
//	load=error|panic        fail while importing
//	export=none             entry point exports nothing
//	instance=nil            construct a nil instance
//	activate=error|panic|block
//	deactivate=error|panic|block
package plugintest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/internal/plugin"
)

// Kind is the runtime kind manifests select with "runtime": "fake".
const Kind plugin.RuntimeKind = "fake"

// Runtime is a plugin.Runtime that builds Plugin fakes from directive files.
type Runtime struct {
	mu      sync.Mutex
	created []*Plugin
}

var _ plugin.Runtime = (*Runtime)(nil)

// NewRuntime creates a fake runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Kind implements plugin.Runtime.
func (r *Runtime) Kind() plugin.RuntimeKind {
	return Kind
}

// Load implements plugin.Runtime.
func (r *Runtime) Load(_ context.Context, desc *plugin.Descriptor, entryPath string) (plugin.Plugin, error) {
	data, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return nil, err
	}
	d := parseDirectives(data)

	switch d["load"] {
	case "error":
		return nil, errors.New("fake import failure")
	case "panic":
		panic("fake import panic")
	}
	if d["export"] == "none" {
		return nil, plugin.ErrNoExport(desc.Identity)
	}
	if d["instance"] == "nil" {
		return nil, nil
	}

	id := desc.Identity
	if v, ok := d["id"]; ok {
		id = v
	}

	p := &Plugin{
		id:          id,
		name:        desc.DisplayName,
		description: desc.Description,
		version:     desc.Version,
		onActivate:  d["activate"],
		onDeact:     d["deactivate"],
	}

	r.mu.Lock()
	r.created = append(r.created, p)
	r.mu.Unlock()
	return p, nil
}

// Created returns every instance the runtime has constructed, in order.
func (r *Runtime) Created() []*Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Plugin(nil), r.created...)
}

func parseDirectives(data []byte) map[string]string {
	d := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if ok {
			d[key] = value
		}
	}
	return d
}

// Plugin is a plugin.Plugin that counts its lifecycle calls.
type Plugin struct {
	id, name, description, version string
	onActivate, onDeact            string

	activations   atomic.Int32
	deactivations atomic.Int32
	releases      atomic.Int32
	host          atomic.Value
}

var (
	_ plugin.Plugin   = (*Plugin)(nil)
	_ plugin.Releaser = (*Plugin)(nil)
)

// NewPlugin creates a well-behaved fake plugin.
func NewPlugin(id string) *Plugin {
	return &Plugin{id: id, name: id, description: id, version: "1.0.0"}
}

func (p *Plugin) ID() string          { return p.id }
func (p *Plugin) Name() string        { return p.name }
func (p *Plugin) Description() string { return p.description }
func (p *Plugin) Version() string     { return p.version }

// Activate implements plugin.Plugin.
func (p *Plugin) Activate(ctx context.Context, host plugin.HostContext) error {
	p.activations.Add(1)
	if host != nil {
		p.host.Store(hostBox{host})
	}
	return behave(ctx, p.onActivate, "activate")
}

// Deactivate implements plugin.Plugin.
func (p *Plugin) Deactivate(ctx context.Context) error {
	p.deactivations.Add(1)
	return behave(ctx, p.onDeact, "deactivate")
}

// Release implements plugin.Releaser.
func (p *Plugin) Release() {
	p.releases.Add(1)
}

// Activations returns how many times Activate was called.
func (p *Plugin) Activations() int { return int(p.activations.Load()) }

// Deactivations returns how many times Deactivate was called.
func (p *Plugin) Deactivations() int { return int(p.deactivations.Load()) }

// Releases returns how many times Release was called.
func (p *Plugin) Releases() int { return int(p.releases.Load()) }

// Host returns the host context passed to Activate.
func (p *Plugin) Host() plugin.HostContext {
	if b, ok := p.host.Load().(hostBox); ok {
		return b.host
	}
	return nil
}

type hostBox struct{ host plugin.HostContext }

func behave(ctx context.Context, mode, phase string) error {
	switch mode {
	case "error":
		return errors.New("fake " + phase + " failure")
	case "panic":
		panic("fake " + phase + " panic")
	case "block":
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

// Candidate describes a plugin directory written by WriteCandidate.
type Candidate struct {
	// Dir is the directory name under the root.
	Dir string
	// Manifest is written verbatim to plugin.json when set.
	Manifest string
	// Directives are written to the entry point main.fake.
	Directives []string
}

// WriteCandidate creates a candidate directory under root.
func WriteCandidate(t *testing.T, root string, c Candidate) string {
	t.Helper()
	dir := filepath.Join(root, c.Dir)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	if c.Manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(c.Manifest), 0o600))
	}
	entry := strings.Join(c.Directives, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.fake"), []byte(entry), 0o600))
	return dir
}

// Manifest returns a well-formed plugin.json body for the fake runtime.
func Manifest(id string) string {
	return `{
  "name": "` + id + `",
  "displayName": "` + id + `",
  "version": "1.0.0",
  "main": "main.fake",
  "runtime": "fake"
}`
}
