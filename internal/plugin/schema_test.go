// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/internal/plugin"
)

func TestValidateSchema_ValidJSONManifest(t *testing.T) {
	manifest := `{
  "name": "host-plugin-sample",
  "displayName": "Sample",
  "version": "1.0.0",
  "author": {"name": "Ada"},
  "repository": "https://example.com/sample.git",
  "dependencies": {"host-plugin-other": "^1.0.0"},
  "main": "main.lua",
  "engines": {"host": "^1.0.0"},
  "scripts": {"build": "make"}
}`
	require.NoError(t, plugin.ValidateSchema("plugin.json", []byte(manifest), plugin.DefaultPrefix))
}

func TestValidateSchema_ValidYAMLManifest(t *testing.T) {
	manifest := `
name: host-plugin-sample
version: 1.0.0
main: bin/sample
runtime: binary
dependencies:
  - host-plugin-other
`
	require.NoError(t, plugin.ValidateSchema("plugin.yaml", []byte(manifest), plugin.DefaultPrefix))
}

func TestValidateSchema_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			name:     "missing main",
			manifest: `{"name": "host-plugin-a", "version": "1.0.0"}`,
			wantErr:  "main",
		},
		{
			name:     "missing version",
			manifest: `{"name": "host-plugin-a", "main": "main.lua"}`,
			wantErr:  "version",
		},
		{
			name:     "empty version",
			manifest: `{"name": "host-plugin-a", "version": "", "main": "main.lua"}`,
			wantErr:  "version",
		},
		{
			name:     "name without prefix",
			manifest: `{"name": "sample", "version": "1.0.0", "main": "main.lua"}`,
			wantErr:  "name",
		},
		{
			name:     "unknown runtime",
			manifest: `{"name": "host-plugin-a", "version": "1.0.0", "main": "main.lua", "runtime": "wasm"}`,
			wantErr:  "runtime",
		},
		{
			name:     "numeric author",
			manifest: `{"name": "host-plugin-a", "version": "1.0.0", "main": "main.lua", "author": 7}`,
			wantErr:  "author",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := plugin.ValidateSchema("plugin.json", []byte(tt.manifest), plugin.DefaultPrefix)
			require.Error(t, err)
			assert.Contains(t, plugin.FormatSchemaError(err), tt.wantErr)
		})
	}
}

func TestValidateSchema_CustomPrefix(t *testing.T) {
	manifest := []byte(`{"name": "acme-tool", "version": "1.0.0", "main": "main.lua"}`)

	require.NoError(t, plugin.ValidateSchema("plugin.json", manifest, "acme-"))
	require.Error(t, plugin.ValidateSchema("plugin.json", manifest, plugin.DefaultPrefix))
}

func TestValidateSchema_EmptyInput(t *testing.T) {
	err := plugin.ValidateSchema("plugin.json", nil, plugin.DefaultPrefix)
	assert.ErrorContains(t, err, "empty")
}

func TestGenerateSchema(t *testing.T) {
	data, err := plugin.GenerateSchema(plugin.DefaultPrefix)
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, plugin.SchemaID, schema["$id"])
	assert.ElementsMatch(t, []any{"name", "version", "main"}, schema["required"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	name, ok := props["name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "^host-plugin-", name["pattern"])
	assert.Contains(t, props, "engines")
}

func TestFormatSchemaError(t *testing.T) {
	assert.Empty(t, plugin.FormatSchemaError(nil))
}
