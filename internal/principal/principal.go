package principal

import (
	"context"
	"errors"

	"github.com/elskow/chef-identity/internal/provider"
)

var ErrNoPrincipal = errors.New("no authenticated principal in context")

// Principal is the authenticated caller of a request. SessionID is empty
// for bearer-token requests and TokenID is empty for cookie sessions.
type Principal struct {
	UserID    int64
	DeviceID  string
	Provider  provider.Provider
	SessionID string
	TokenID   string
}

type contextKey struct{}

func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	if !ok {
		return Principal{}, ErrNoPrincipal
	}
	return p, nil
}
