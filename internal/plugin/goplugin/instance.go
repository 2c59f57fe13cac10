// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package goplugin

import (
	"context"
	"sync"

	"github.com/samber/oops"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/pkg/pluginsdk"
)

// binaryPlugin is a plugin instance running in a child process.
type binaryPlugin struct {
	client    PluginClient
	lifecycle pluginsdk.LifecycleClient
	killOnce  sync.Once

	id          string
	name        string
	description string
	version     string
}

var (
	_ plugin.Plugin   = (*binaryPlugin)(nil)
	_ plugin.Releaser = (*binaryPlugin)(nil)
)

// bind copies the described fields, returning why the description is
// unusable or "" if it is complete.
func (p *binaryPlugin) bind(info *structpb.Struct) string {
	fields := info.GetFields()
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"id", &p.id},
		{"name", &p.name},
		{"description", &p.description},
		{"version", &p.version},
	} {
		v, ok := fields[f.key]
		if !ok {
			return f.key + " is missing"
		}
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return f.key + " must be a string"
		}
		*f.dst = s.StringValue
	}
	return ""
}

func (p *binaryPlugin) ID() string          { return p.id }
func (p *binaryPlugin) Name() string        { return p.name }
func (p *binaryPlugin) Description() string { return p.description }
func (p *binaryPlugin) Version() string     { return p.version }

// Activate sends the host values to the plugin. Hosts that do not
// implement plugin.ValueProvider send an empty record.
func (p *binaryPlugin) Activate(ctx context.Context, host plugin.HostContext) error {
	values := map[string]any{}
	if vp, ok := host.(plugin.ValueProvider); ok {
		values = vp.Values()
	}
	in, err := structpb.NewStruct(values)
	if err != nil {
		return oops.In("goplugin").
			With("plugin", p.id).
			With("operation", "activate").
			Wrapf(err, "encode host values")
	}
	if _, err := p.lifecycle.Activate(ctx, in); err != nil {
		return oops.In("goplugin").
			With("plugin", p.id).
			With("operation", "activate").
			Wrap(err)
	}
	return nil
}

// Deactivate asks the plugin to stop and then kills its process.
func (p *binaryPlugin) Deactivate(ctx context.Context) error {
	_, err := p.lifecycle.Deactivate(ctx, &emptypb.Empty{})
	p.Release()
	if err != nil {
		return oops.In("goplugin").
			With("plugin", p.id).
			With("operation", "deactivate").
			Wrap(err)
	}
	return nil
}

// Release kills the plugin process. Safe to call more than once.
func (p *binaryPlugin) Release() {
	p.killOnce.Do(p.client.Kill)
}
