package status

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "jobswipe.status.v1.StatusService"

const (
	listConnectionsMethod = "/" + ServiceName + "/ListConnections"
	getConnectionMethod   = "/" + ServiceName + "/GetConnection"
	getUnreadCountMethod  = "/" + ServiceName + "/GetUnreadCount"
)

// StatusServer is the server API of the status service. Messages are
// protobuf well-known types so no generated code is needed.
type StatusServer interface {
	// ListConnections returns {"connections": [connection...]}.
	ListConnections(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetConnection returns the connection of the owner named in the request.
	GetConnection(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetUnreadCount returns the notification badge count.
	GetUnreadCount(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
}

// RegisterStatusServer attaches srv to s.
func RegisterStatusServer(s grpc.ServiceRegistrar, srv StatusServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the status service to grpc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListConnections", Handler: listConnectionsHandler},
		{MethodName: "GetConnection", Handler: getConnectionHandler},
		{MethodName: "GetUnreadCount", Handler: getUnreadCountHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobswipe/status/v1/status.proto",
}

func listConnectionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServer).ListConnections(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listConnectionsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServer).ListConnections(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getConnectionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServer).GetConnection(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getConnectionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServer).GetConnection(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getUnreadCountHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServer).GetUnreadCount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getUnreadCountMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServer).GetUnreadCount(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the status service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) ListConnections(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listConnectionsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetConnection(ctx context.Context, owner string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getConnectionMethod, wrapperspb.String(owner), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUnreadCount(ctx context.Context, opts ...grpc.CallOption) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, getUnreadCountMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
