// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginsdk

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// LifecycleServiceName is the fully qualified gRPC service name.
const LifecycleServiceName = "pluginhost.lifecycle.v1.Lifecycle"

const (
	describeMethod   = "/" + LifecycleServiceName + "/Describe"
	activateMethod   = "/" + LifecycleServiceName + "/Activate"
	deactivateMethod = "/" + LifecycleServiceName + "/Deactivate"
)

// LifecycleClient is the host side of the lifecycle service.
type LifecycleClient interface {
	// Describe returns the plugin's id, name, description and version.
	Describe(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// Activate passes the host values to the plugin.
	Activate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	// Deactivate asks the plugin to release its resources.
	Deactivate(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

// LifecycleServer is the plugin side of the lifecycle service.
type LifecycleServer interface {
	Describe(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Activate(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
	Deactivate(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error)
}

type lifecycleClient struct {
	cc grpc.ClientConnInterface
}

// NewLifecycleClient creates a lifecycle client on cc.
func NewLifecycleClient(cc grpc.ClientConnInterface) LifecycleClient {
	return &lifecycleClient{cc: cc}
}

func (c *lifecycleClient) Describe(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, describeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lifecycleClient) Activate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, activateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lifecycleClient) Deactivate(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, deactivateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterLifecycleServer registers srv on s.
func RegisterLifecycleServer(s grpc.ServiceRegistrar, srv LifecycleServer) {
	s.RegisterService(&lifecycleServiceDesc, srv)
}

var lifecycleServiceDesc = grpc.ServiceDesc{
	ServiceName: LifecycleServiceName,
	HandlerType: (*LifecycleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Describe", Handler: describeHandler},
		{MethodName: "Activate", Handler: activateHandler},
		{MethodName: "Deactivate", Handler: deactivateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pluginhost/lifecycle/v1/lifecycle.proto",
}

func describeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LifecycleServer).Describe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: describeMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(LifecycleServer).Describe(ctx, req.(*emptypb.Empty))
	})
}

func activateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LifecycleServer).Activate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: activateMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(LifecycleServer).Activate(ctx, req.(*structpb.Struct))
	})
}

func deactivateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LifecycleServer).Deactivate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: deactivateMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(LifecycleServer).Deactivate(ctx, req.(*emptypb.Empty))
	})
}
