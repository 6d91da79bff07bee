package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/elskow/chef-identity/internal/denylist"
	"github.com/elskow/chef-identity/internal/httpx"
	"github.com/elskow/chef-identity/internal/principal"
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (principal.Principal, error)
}

// RequireAuth admits requests that already carry a session principal or
// present a valid bearer token.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := principal.FromContext(c.Request.Context()); err == nil {
			c.Next()
			return
		}

		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			httpx.Abort(c, http.StatusUnauthorized, "unauthenticated", "Authentication required")
			return
		}

		caller, err := auth.Authenticate(c.Request.Context(), raw)
		switch {
		case err == nil:
		case errors.Is(err, ErrDeviceBlocked):
			httpx.Abort(c, http.StatusForbidden, "device_blocked", "Blocked device")
			return
		case errors.Is(err, ErrInvalidToken), errors.Is(err, denylist.ErrTokenRevoked):
			httpx.Abort(c, http.StatusUnauthorized, "invalid_token", "Invalid token")
			return
		default:
			_ = c.Error(err)
			httpx.Abort(c, http.StatusInternalServerError, "internal_error", "Internal server error")
			return
		}

		c.Request = c.Request.WithContext(principal.NewContext(c.Request.Context(), caller))
		c.Next()
	}
}

// AuthMiddleware authenticates gRPC calls from the authorization metadata.
type AuthMiddleware struct {
	auth Authenticator
	log  *zap.Logger
}

func NewAuthMiddleware(auth Authenticator, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, log: log}
}

func (m *AuthMiddleware) AuthenticationMiddleware(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	raw := bearerToken(values[0])
	if raw == "" {
		raw = values[0]
	}

	caller, err := m.auth.Authenticate(ctx, raw)
	switch {
	case err == nil:
		return principal.NewContext(ctx, caller), nil
	case errors.Is(err, ErrDeviceBlocked):
		return nil, status.Error(codes.PermissionDenied, "device blocked")
	case errors.Is(err, ErrInvalidToken), errors.Is(err, denylist.ErrTokenRevoked):
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	default:
		m.log.Error("grpc authentication failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "authentication failed")
	}
}

func rawTokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	if raw := bearerToken(values[0]); raw != "" {
		return raw
	}
	return values[0]
}
