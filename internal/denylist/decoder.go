package denylist

import (
	"context"
	"errors"
	"time"
)

var ErrTokenRevoked = errors.New("token revoked")

// Token is a decoded, signature-verified bearer token.
type Token struct {
	ID        string
	Subject   string
	ExpiresAt *time.Time
	Claims    map[string]any
}

type TokenDecoder interface {
	Decode(ctx context.Context, raw string) (*Token, error)
}

type Checker interface {
	IsRevoked(ctx context.Context, jti, token string) (bool, error)
}

// RevocationAwareDecoder rejects tokens that decode cleanly but have been
// revoked. The denylist is consulted only after a successful decode.
type RevocationAwareDecoder struct {
	decoder TokenDecoder
	checker Checker
}

func NewRevocationAwareDecoder(decoder TokenDecoder, checker Checker) *RevocationAwareDecoder {
	return &RevocationAwareDecoder{decoder: decoder, checker: checker}
}

func (d *RevocationAwareDecoder) Decode(ctx context.Context, raw string) (*Token, error) {
	token, err := d.decoder.Decode(ctx, raw)
	if err != nil {
		return nil, err
	}
	revoked, err := d.checker.IsRevoked(ctx, token.ID, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return token, nil
}
