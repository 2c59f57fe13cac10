// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/holomush/pluginhost/internal/config"
	"github.com/holomush/pluginhost/internal/plugin"
)

// candidateStatus is one row of the list output.
type candidateStatus struct {
	Dir     string `json:"dir"`
	ID      string `json:"id,omitempty"`
	Version string `json:"version,omitempty"`
	Runtime string `json:"runtime,omitempty"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

// NewListCmd creates the list subcommand.
func NewListCmd(load configLoader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plugin candidates and whether they would load",
		Long: `List every directory under the plugin root and report whether its
manifest is valid, disabled or incompatible with this host. Nothing is
loaded or activated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			rows, err := inspectCandidates(cfg)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			return writeCandidateTable(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func inspectCandidates(cfg *config.Config) ([]candidateStatus, error) {
	mgr, err := newManager(cfg, nil, slog.New(slog.DiscardHandler), nil)
	if err != nil {
		return nil, err
	}
	inspections, err := mgr.Inspect(cfg.Plugins.Dir)
	if err != nil {
		return nil, err
	}

	rows := make([]candidateStatus, 0, len(inspections))
	for _, ins := range inspections {
		row := candidateStatus{Dir: filepath.Base(ins.Dir), Status: "ok"}
		if d := ins.Descriptor; d != nil {
			row.ID, row.Version, row.Runtime = d.Identity, d.Version, string(d.Runtime)
		}
		switch ins.Outcome {
		case "":
		case plugin.OutcomeNotPlugin:
			row.Status = "no manifest"
		case plugin.OutcomeDisabled:
			row.Status, row.Detail = "disabled", "matches "+ins.Reason
		default:
			row.Status = ins.Outcome
			row.Detail = ins.Reason
			if ins.Err != nil {
				row.Detail = ins.Err.Error()
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeCandidateTable(w io.Writer, rows []candidateStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DIR\tID\tVERSION\tRUNTIME\tSTATUS\tDETAIL")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Dir, r.ID, r.Version, r.Runtime, r.Status, r.Detail)
	}
	return tw.Flush()
}
