package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/elskow/chef-identity/internal/principal"
)

const (
	IdentityServiceName = "chef.identity.v1.Identity"
	WhoAmIMethod        = "/" + IdentityServiceName + "/WhoAmI"
	RevokeTokenMethod   = "/" + IdentityServiceName + "/RevokeToken"
)

// IdentityServer exposes the bearer-token principal over gRPC. Messages
// are protobuf well-known types, so no generated stubs are needed.
type IdentityServer struct {
	service *Service
	log     *zap.Logger
}

func NewIdentityServer(service *Service, log *zap.Logger) *IdentityServer {
	return &IdentityServer{service: service, log: log}
}

func (s *IdentityServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	caller, err := principal.FromContext(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	return structpb.NewStruct(map[string]any{
		"userId":   float64(caller.UserID),
		"deviceId": caller.DeviceID,
		"provider": caller.Provider.String(),
		"tokenId":  caller.TokenID,
	})
}

// RevokeToken denylists the token carried in the authorization metadata.
// It bypasses the denylist check so revoking twice succeeds.
func (s *IdentityServer) RevokeToken(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	raw := rawTokenFromMetadata(ctx)
	if raw == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	err := s.service.RevokeToken(ctx, raw, "LOGOUT")
	switch {
	case err == nil:
		return &emptypb.Empty{}, nil
	case errors.Is(err, ErrInvalidToken):
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	default:
		s.log.Error("grpc token revoke failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "token could not be revoked")
	}
}

func (s *IdentityServer) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&identityServiceDesc, s)
}

type identityService interface {
	WhoAmI(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RevokeToken(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*identityService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "WhoAmI",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(emptypb.Empty)
				if err := dec(in); err != nil {
					return nil, err
				}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(identityService).WhoAmI(ctx, req.(*emptypb.Empty))
				}
				if interceptor == nil {
					return handler(ctx, in)
				}
				return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}, handler)
			},
		},
		{
			MethodName: "RevokeToken",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(emptypb.Empty)
				if err := dec(in); err != nil {
					return nil, err
				}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(identityService).RevokeToken(ctx, req.(*emptypb.Empty))
				}
				if interceptor == nil {
					return handler(ctx, in)
				}
				return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: RevokeTokenMethod}, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chef/identity/v1/identity.proto",
}
