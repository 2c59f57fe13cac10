// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main implements the echo binary plugin. On activation it logs
// the host values it received to stderr, which the host forwards to its
// own log.
//
// Build next to its manifest:
//
//	go build -o plugins/echo/echo ./plugins/echo
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/holomush/pluginhost/pkg/pluginsdk"
)

type echo struct {
	keys []string
}

func (e *echo) Info() pluginsdk.Info {
	return pluginsdk.Info{
		ID:          "host-plugin-echo",
		Name:        "Echo",
		Description: "Echoes the host values it is activated with",
		Version:     "1.0.0",
	}
}

func (e *echo) Activate(_ context.Context, host map[string]any) error {
	for k := range host {
		e.keys = append(e.keys, k)
	}
	sort.Strings(e.keys)
	for _, k := range e.keys {
		fmt.Fprintf(os.Stderr, "echo: %s=%v\n", k, host[k])
	}
	return nil
}

func (e *echo) Deactivate(_ context.Context) error {
	fmt.Fprintf(os.Stderr, "echo: deactivated after seeing %d values\n", len(e.keys))
	return nil
}

func main() {
	pluginsdk.Serve(&pluginsdk.ServeConfig{Plugin: &echo{}})
}
