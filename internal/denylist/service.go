package denylist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/strutil"
)

const defaultTTL = time.Hour

type Service struct {
	log  *zap.Logger
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

func NewService(cfg *config.DenylistConfig, log *zap.Logger, repo Repository) *Service {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{log: log, repo: repo, ttl: ttl, now: time.Now}
}

// Revoke denies token until expiresAt, or for the default TTL when the
// expiry is unknown. Revoking an already denied key is a no-op.
func (s *Service) Revoke(ctx context.Context, token, jti string, expiresAt *time.Time, reason string) error {
	now := s.now()
	entry := &Entry{
		TokenKey:  key(jti, token),
		RevokedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if expiresAt != nil {
		entry.ExpiresAt = *expiresAt
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		reason = strutil.Truncate(reason, maxReasonLength)
		entry.Reason = &reason
	}

	inserted, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if inserted {
		s.log.Info("token revoked",
			zap.String("key", entry.TokenKey),
			zap.Time("expires_at", entry.ExpiresAt))
	}
	return nil
}

// IsRevoked checks both the jti and the hash of the raw token.
func (s *Service) IsRevoked(ctx context.Context, jti, token string) (bool, error) {
	keys := make([]string, 0, 2)
	if k := jtiKey(jti); k != "" {
		keys = append(keys, k)
	}
	if token != "" {
		keys = append(keys, HashKey(token))
	}
	revoked, err := s.repo.ExistsAny(ctx, keys...)
	if err != nil {
		return false, fmt.Errorf("check denylist: %w", err)
	}
	return revoked, nil
}

// CleanupExpired deletes entries whose expiry is before now.
func (s *Service) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup denylist: %w", err)
	}
	return n, nil
}
