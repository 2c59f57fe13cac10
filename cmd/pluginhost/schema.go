// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/pluginhost/internal/plugin"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd(load configLoader) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the plugin manifest JSON Schema",
		Long: `Print the JSON Schema for plugin manifests, using the configured name
prefix. With --output the schema is written to a file instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			schema, err := plugin.GenerateSchema(cfg.Plugins.Prefix)
			if err != nil {
				return err
			}
			schema = append(schema, '\n')

			if output == "" {
				_, err := cmd.OutOrStdout().Write(schema)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
				return oops.In("schema").With("path", output).Wrapf(err, "create directory")
			}
			if err := os.WriteFile(output, schema, 0o600); err != nil {
				return oops.In("schema").With("path", output).Wrapf(err, "write schema")
			}
			cmd.Printf("Generated %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the schema to this file")
	return cmd
}
