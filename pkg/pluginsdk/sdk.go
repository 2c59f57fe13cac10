// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package pluginsdk provides the SDK for building binary plugins.
//
// Binary plugins run as child processes and talk to the host over gRPC
// using the HashiCorp go-plugin framework. The host starts the process,
// asks it to describe itself, activates it with the host values and
// deactivates it during teardown.
//
// Example usage:
//
//	package main
//
//	import (
//		"context"
//		"github.com/holomush/pluginhost/pkg/pluginsdk"
//	)
//
//	type Echo struct{}
//
//	func (Echo) Info() pluginsdk.Info {
//		return pluginsdk.Info{ID: "host-plugin-echo", Name: "Echo", Version: "1.0.0"}
//	}
//
//	func (Echo) Activate(ctx context.Context, host map[string]any) error { return nil }
//	func (Echo) Deactivate(ctx context.Context) error                   { return nil }
//
//	func main() {
//		pluginsdk.Serve(&pluginsdk.ServeConfig{Plugin: Echo{}})
//	}
package pluginsdk

import (
	"context"
	"errors"
	"fmt"

	hashiplug "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// PluginName is the name the host dispenses from a plugin process.
const PluginName = "lifecycle"

// HandshakeConfig is the go-plugin handshake configuration.
// Both host and plugins must use the same values.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PLUGINHOST_PLUGIN",
	MagicCookieValue: "pluginhost-v1",
}

// Info describes a plugin to the host.
type Info struct {
	ID          string
	Name        string
	Description string
	Version     string
}

// Plugin is the interface binary plugins implement.
type Plugin interface {
	// Info returns the plugin's identity.
	Info() Info
	// Activate is called once with the host values.
	Activate(ctx context.Context, host map[string]any) error
	// Deactivate is called once during host teardown.
	Deactivate(ctx context.Context) error
}

// ServeConfig configures the plugin server.
type ServeConfig struct {
	// Plugin is the plugin implementation.
	// Required; Serve will panic if nil.
	Plugin Plugin
}

// Serve starts the plugin server. This should be called from main().
// It blocks until the host kills the process.
func Serve(config *ServeConfig) {
	if config == nil {
		panic("pluginsdk: config cannot be nil")
	}
	if config.Plugin == nil {
		panic("pluginsdk: config.Plugin cannot be nil")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]hashiplug.Plugin{
			PluginName: &GRPCPlugin{Impl: config.Plugin},
		},
		GRPCServer: hashiplug.DefaultGRPCServer,
	})
}

// GRPCPlugin implements go-plugin's Plugin interface for gRPC.
// Impl is only set in the plugin process.
type GRPCPlugin struct {
	hashiplug.NetRPCUnsupportedPlugin
	Impl Plugin
}

// GRPCServer registers the lifecycle server (called by plugin process).
func (p *GRPCPlugin) GRPCServer(_ *hashiplug.GRPCBroker, s *grpc.Server) error {
	if p.Impl == nil {
		return errors.New("pluginsdk: plugin implementation is nil")
	}
	RegisterLifecycleServer(s, &lifecycleServerAdapter{impl: p.Impl})
	return nil
}

// GRPCClient returns a lifecycle client (called by host process).
func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *hashiplug.GRPCBroker, c *grpc.ClientConn) (any, error) {
	return NewLifecycleClient(c), nil
}

// lifecycleServerAdapter adapts Plugin to LifecycleServer.
type lifecycleServerAdapter struct {
	impl Plugin
}

func (a *lifecycleServerAdapter) Describe(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	info := a.impl.Info()
	s, err := structpb.NewStruct(map[string]any{
		"id":          info.ID,
		"name":        info.Name,
		"description": info.Description,
		"version":     info.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("describe: %w", err)
	}
	return s, nil
}

func (a *lifecycleServerAdapter) Activate(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := a.impl.Activate(ctx, in.AsMap()); err != nil {
		return nil, fmt.Errorf("activate: %w", err)
	}
	return &emptypb.Empty{}, nil
}

func (a *lifecycleServerAdapter) Deactivate(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := a.impl.Deactivate(ctx); err != nil {
		return nil, fmt.Errorf("deactivate: %w", err)
	}
	return &emptypb.Empty{}, nil
}
