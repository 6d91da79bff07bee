package api

import "github.com/elskow/chef-identity/internal/auth"

// gRPC method names
const (
	HealthService = "grpc.health.v1.Health"
	HealthCheck   = "/grpc.health.v1.Health/Check"
	HealthWatch   = "/grpc.health.v1.Health/Watch"

	IdentityWhoAmI      = auth.WhoAmIMethod
	IdentityRevokeToken = auth.RevokeTokenMethod
)

// PublicEndpoints lists gRPC methods that skip the interceptor's token
// check. RevokeToken validates its own token without the denylist.
var PublicEndpoints = map[string]bool{
	HealthCheck:         true,
	HealthWatch:         true,
	IdentityWhoAmI:      false,
	IdentityRevokeToken: true,
}

// IsProtected reports whether method requires authentication. Unknown
// methods are protected.
func IsProtected(method string) bool {
	return !PublicEndpoints[method]
}
