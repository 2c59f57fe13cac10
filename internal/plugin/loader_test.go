// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/plugin/plugintest"
	"github.com/holomush/pluginhost/pkg/errutil"
)

func fakeDescriptor(id string) *plugin.Descriptor {
	return &plugin.Descriptor{
		Identity:    id,
		DisplayName: id,
		Description: id,
		Version:     "1.0.0",
		EntryPoint:  "main.fake",
		Runtime:     plugintest.Kind,
	}
}

func TestLoader_Load(t *testing.T) {
	root := t.TempDir()
	dir := plugintest.WriteCandidate(t, root, plugintest.Candidate{Dir: "a"})
	loader := plugin.NewLoader(plugintest.NewRuntime())

	p, err := loader.Load(context.Background(), dir, fakeDescriptor("host-plugin-a"))

	require.NoError(t, err)
	assert.Equal(t, "host-plugin-a", p.ID())
}

func TestLoader_Load_Failures(t *testing.T) {
	tests := []struct {
		name       string
		directives []string
		mutate     func(d *plugin.Descriptor)
		wantCode   string
	}{
		{name: "import error", directives: []string{"load=error"}, wantCode: plugin.CodeLoadFailed},
		{name: "import panic", directives: []string{"load=panic"}, wantCode: plugin.CodeLoadFailed},
		{name: "no export", directives: []string{"export=none"}, wantCode: plugin.CodeNoExport},
		{name: "nil instance", directives: []string{"instance=nil"}, wantCode: plugin.CodeInvalidInstance},
		{name: "empty id", directives: []string{"id="}, wantCode: plugin.CodeInvalidInstance},
		{
			name:     "entry missing",
			mutate:   func(d *plugin.Descriptor) { d.EntryPoint = "missing.fake" },
			wantCode: plugin.CodeEntryPointMissing,
		},
		{
			name:     "entry is a directory",
			mutate:   func(d *plugin.Descriptor) { d.EntryPoint = "." },
			wantCode: plugin.CodeEntryPointMissing,
		},
		{
			name:     "entry escapes",
			mutate:   func(d *plugin.Descriptor) { d.EntryPoint = "../other/main.fake" },
			wantCode: plugin.CodeManifestInvalid,
		},
		{
			name:     "absolute entry",
			mutate:   func(d *plugin.Descriptor) { d.EntryPoint = "/etc/passwd" },
			wantCode: plugin.CodeManifestInvalid,
		},
		{
			name:     "runtime unavailable",
			mutate:   func(d *plugin.Descriptor) { d.Runtime = plugin.RuntimeLua },
			wantCode: plugin.CodeRuntimeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			dir := plugintest.WriteCandidate(t, root, plugintest.Candidate{Dir: "a", Directives: tt.directives})
			rt := plugintest.NewRuntime()
			loader := plugin.NewLoader(rt)
			desc := fakeDescriptor("host-plugin-a")
			if tt.mutate != nil {
				tt.mutate(desc)
			}

			p, err := loader.Load(context.Background(), dir, desc)

			assert.Nil(t, p)
			errutil.AssertErrorCode(t, err, tt.wantCode)
			errutil.AssertErrorContext(t, err, "plugin", "host-plugin-a")
		})
	}
}

func TestLoader_Load_ReleasesInvalidInstance(t *testing.T) {
	root := t.TempDir()
	dir := plugintest.WriteCandidate(t, root, plugintest.Candidate{Dir: "a", Directives: []string{"id="}})
	rt := plugintest.NewRuntime()

	_, err := plugin.NewLoader(rt).Load(context.Background(), dir, fakeDescriptor("host-plugin-a"))

	require.Error(t, err)
	created := rt.Created()
	require.Len(t, created, 1)
	assert.Equal(t, 1, created[0].Releases())
	assert.Zero(t, created[0].Activations())
}

func TestResolveEntryPoint(t *testing.T) {
	dir := filepath.Join(string(os.PathSeparator), "plugins", "a")

	got, err := plugin.ResolveEntryPoint(dir, "lib/main.lua")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lib", "main.lua"), got)

	got, err = plugin.ResolveEntryPoint(dir, "./lib/../main.lua")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main.lua"), got)

	for _, bad := range []string{"", "/abs/main.lua", "../b/main.lua", "lib/../../b"} {
		_, err := plugin.ResolveEntryPoint(dir, bad)
		assert.Error(t, err, "ResolveEntryPoint(%q)", bad)
	}
}

func TestLoader_Load_RuntimeUnavailableListsRuntimes(t *testing.T) {
	root := t.TempDir()
	dir := plugintest.WriteCandidate(t, root, plugintest.Candidate{Dir: "a"})
	loader := plugin.NewLoader(plugintest.NewRuntime(), stubRuntime(plugin.RuntimeBinary))
	assert.Equal(t, []plugin.RuntimeKind{plugin.RuntimeBinary, plugintest.Kind}, loader.Runtimes())

	desc := fakeDescriptor("host-plugin-a")
	desc.Runtime = plugin.RuntimeLua
	_, err := loader.Load(context.Background(), dir, desc)

	errutil.AssertErrorCode(t, err, plugin.CodeRuntimeUnavailable)
	errutil.AssertErrorContext(t, err, "runtime", "lua")
	errutil.AssertErrorContext(t, err, "available", "binary, fake")
	assert.ErrorContains(t, err, "available: binary, fake")
}

// stubRuntime is a runtime that is configured but never asked to load.
type stubRuntime plugin.RuntimeKind

func (s stubRuntime) Kind() plugin.RuntimeKind { return plugin.RuntimeKind(s) }

func (s stubRuntime) Load(context.Context, *plugin.Descriptor, string) (plugin.Plugin, error) {
	return nil, nil
}
