// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package goplugin imports binary plugins using HashiCorp's go-plugin
// system over gRPC.
//
// The entry point is an executable that calls pluginsdk.Serve. Loading
// starts the process and asks it to describe itself; the process lives
// until the instance is deactivated or released.
package goplugin

import (
	"context"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/pkg/pluginsdk"
)

// HandshakeConfig is imported from pluginsdk to ensure host and plugins
// use identical configuration. Do not define locally to prevent drift.
var HandshakeConfig = pluginsdk.HandshakeConfig

// PluginMap is the map of plugins we can dispense.
var PluginMap = map[string]hashiplug.Plugin{
	pluginsdk.PluginName: &pluginsdk.GRPCPlugin{},
}

// PluginClient wraps go-plugin client for testability.
type PluginClient interface {
	// Client returns the gRPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the given executable path.
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct {
	// Logger receives go-plugin output and whatever the plugin writes to
	// its stdout and stderr. Defaults to warnings on stderr.
	Logger hclog.Logger
}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(execPath string) PluginClient {
	logger := f.Logger
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:   "plugin",
			Level:  hclog.Warn,
			Output: os.Stderr,
		})
	}
	output := logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true})
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap,
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath resolved from plugin manifest inside the plugin directory
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolGRPC},
		Logger:           logger,
		SyncStdout:       output,
		SyncStderr:       output,
	})
}

// Runtime starts binary plugins.
type Runtime struct {
	clientFactory ClientFactory
}

var _ plugin.Runtime = (*Runtime)(nil)

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithClientFactory replaces the factory that starts plugin processes.
func WithClientFactory(f ClientFactory) RuntimeOption {
	return func(r *Runtime) {
		r.clientFactory = f
	}
}

// NewRuntime creates a binary plugin runtime.
// Panics if the configured factory is nil.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{clientFactory: &DefaultClientFactory{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.clientFactory == nil {
		panic("goplugin: factory cannot be nil")
	}
	return r
}

// Kind implements plugin.Runtime.
func (r *Runtime) Kind() plugin.RuntimeKind {
	return plugin.RuntimeBinary
}

// Load starts the executable and dispenses its lifecycle client.
func (r *Runtime) Load(ctx context.Context, desc *plugin.Descriptor, entryPath string) (plugin.Plugin, error) {
	id := desc.Identity
	client := r.clientFactory.NewClient(entryPath)

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, plugin.ErrLoadFailed(id, oops.With("path", entryPath).Wrapf(err, "connect to plugin"))
	}

	raw, err := rpcClient.Dispense(pluginsdk.PluginName)
	if err != nil {
		client.Kill()
		return nil, plugin.ErrNoExport(id)
	}

	lc, ok := raw.(pluginsdk.LifecycleClient)
	if !ok || lc == nil {
		client.Kill()
		return nil, plugin.ErrNoExport(id)
	}

	info, err := lc.Describe(ctx, &emptypb.Empty{})
	if err != nil {
		client.Kill()
		return nil, plugin.ErrLoadFailed(id, oops.Wrapf(err, "describe plugin"))
	}

	p := &binaryPlugin{client: client, lifecycle: lc}
	if reason := p.bind(info); reason != "" {
		client.Kill()
		return nil, plugin.ErrInvalidInstance(id, reason)
	}
	return p, nil
}
