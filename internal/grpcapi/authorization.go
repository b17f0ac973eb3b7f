// Package grpcapi serves the authorization query over gRPC for brokers that
// gate file-storage access. The wire messages are the protobuf well-known
// wrappers, so no generated code is needed.
package grpcapi

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName         = "janus.v1.Authorization"
	isAllowAccessMethod = "/janus.v1.Authorization/IsAllowAccess"
)

// AccessChecker answers the authorization query. PolicyService implements it.
type AccessChecker interface {
	IsAllowAccess(ctx context.Context, id string) bool
}

// AuthorizationServer is the RPC surface.
type AuthorizationServer interface {
	IsAllowAccess(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

type authorizationService struct {
	checker AccessChecker
}

// NewAuthorizationService adapts an AccessChecker to the RPC surface.
func NewAuthorizationService(c AccessChecker) AuthorizationServer {
	return &authorizationService{checker: c}
}

// IsAllowAccess never fails for an unknown or malformed id; a deny is a
// value. Ids are matched exactly, so padding is never stripped.
func (s *authorizationService) IsAllowAccess(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	id := in.GetValue()
	if id == "" || strings.TrimSpace(id) != id {
		return wrapperspb.Bool(false), nil
	}
	return wrapperspb.Bool(s.checker.IsAllowAccess(ctx, id)), nil
}

// --- Manual service descriptor plumbing (no proto build) ---

// RegisterAuthorizationServer registers service handlers.
func RegisterAuthorizationServer(s grpc.ServiceRegistrar, srv AuthorizationServer) {
	s.RegisterService(&authorizationServiceDesc, srv)
}

func isAllowAccessHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if interceptor == nil {
		return srv.(AuthorizationServer).IsAllowAccess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: isAllowAccessMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthorizationServer).IsAllowAccess(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var authorizationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthorizationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IsAllowAccess",
			Handler:    isAllowAccessHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "janus/v1/authorization.proto",
}

// Client calls the Authorization service on an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) IsAllowAccess(ctx context.Context, id string, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, isAllowAccessMethod, wrapperspb.String(id), out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}
