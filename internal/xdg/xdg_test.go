// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirs_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	t.Setenv("XDG_STATE_HOME", "/custom/state")

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"ConfigDir", ConfigDir, "/custom/config/pluginhost"},
		{"DataDir", DataDir, "/custom/data/pluginhost"},
		{"StateDir", StateDir, "/custom/state/pluginhost"},
		{"PluginsDir", PluginsDir, "/custom/data/pluginhost/plugins"},
		{"ConfigFile", ConfigFile, "/custom/config/pluginhost/config.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirs_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/testuser")

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"ConfigDir", ConfigDir, "/home/testuser/.config/pluginhost"},
		{"DataDir", DataDir, "/home/testuser/.local/share/pluginhost"},
		{"StateDir", StateDir, "/home/testuser/.local/state/pluginhost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir), "existing directories are fine")

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestEnsureDir_FileInTheWay(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	assert.Error(t, EnsureDir(filepath.Join(file, "sub")))
}
