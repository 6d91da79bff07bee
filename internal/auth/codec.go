package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/denylist"
	"github.com/elskow/chef-identity/internal/provider"
)

const (
	claimUserID   = "uid"
	claimDeviceID = "did"
	claimProvider = "prv"
)

type Claims struct {
	UserID   int64             `json:"uid"`
	DeviceID string            `json:"did,omitempty"`
	Provider provider.Provider `json:"prv"`
	jwt.RegisteredClaims
}

// JWTCodec signs and verifies HS256 bearer tokens.
type JWTCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTCodec(cfg *config.AuthConfig) *JWTCodec {
	ttl := cfg.TokenExpiration
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTCodec{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a new token with a random jti.
func (c *JWTCodec) Issue(userID int64, deviceID string, p provider.Provider) (string, *denylist.Token, error) {
	now := c.now()
	claims := &Claims{
		UserID:   userID,
		DeviceID: deviceID,
		Provider: p,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, toToken(claims), nil
}

// Decode verifies signature, issuer and expiry. It does not consult the
// denylist.
func (c *JWTCodec) Decode(_ context.Context, raw string) (*denylist.Token, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return toToken(claims), nil
}

func toToken(claims *Claims) *denylist.Token {
	token := &denylist.Token{
		ID:      claims.ID,
		Subject: claims.Subject,
		Claims: map[string]any{
			claimUserID:   claims.UserID,
			claimDeviceID: claims.DeviceID,
			claimProvider: claims.Provider,
		},
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		token.ExpiresAt = &exp
	}
	return token
}

// principalClaims reads the identity claims back out of a decoded token.
func principalClaims(token *denylist.Token) (int64, string, provider.Provider, error) {
	userID, ok := token.Claims[claimUserID].(int64)
	if !ok || userID <= 0 {
		return 0, "", "", errors.New("token carries no user id")
	}
	deviceID, _ := token.Claims[claimDeviceID].(string)
	p, _ := token.Claims[claimProvider].(provider.Provider)
	return userID, deviceID, p, nil
}
