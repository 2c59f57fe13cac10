// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/pluginhost/internal/plugin"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plugin-dir|manifest>...",
		Short: "Validate plugin manifests against the manifest schema",
		Long: `Validate each plugin directory or manifest file against the manifest
JSON Schema and the checks discovery applies. Exits non-zero if any
manifest is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			failed := 0
			for _, arg := range args {
				if err := validateManifest(arg, cfg.Plugins.Prefix); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n%s\n", arg, indent(describeValidationError(err)))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", arg)
			}
			if failed > 0 {
				return oops.In("validate").With("failed", failed).Errorf("%d of %d manifests invalid", failed, len(args))
			}
			return nil
		},
	}
}

// validateManifest checks path, a manifest file or a plugin directory.
func validateManifest(path, prefix string) error {
	info, err := os.Stat(path)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if info.IsDir() {
		manifest, _, err := plugin.ReadManifest(path)
		if err != nil {
			return err
		}
		path = manifest
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	name := filepath.Base(path)
	if err := plugin.ValidateSchema(name, data, prefix); err != nil {
		return err
	}

	raw, err := plugin.ParseManifest(name, data)
	if err != nil {
		return err
	}
	if v := plugin.ValidateManifest(raw, prefix); !v.OK {
		return oops.Errorf("%s", v.Reason)
	}
	return nil
}

func describeValidationError(err error) string {
	if s := plugin.FormatSchemaError(err); s != "" {
		return s
	}
	return err.Error()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return "    " + strings.Join(lines, "\n    ")
}
