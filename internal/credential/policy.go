package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
)

// FailureResult classifies a recorded login failure.
type FailureResult string

const (
	NotFound       FailureResult = "NOT_FOUND"
	BadCredentials FailureResult = "BAD_CREDENTIALS"
	Locked         FailureResult = "LOCKED"
)

// Accounts resolves a normalized email to a user id.
type Accounts interface {
	LookupIDByEmail(ctx context.Context, email string) (int64, bool, error)
}

// Policy counts failed local logins and locks the credential once the
// threshold is reached.
type Policy struct {
	config   config.LockoutConfig
	log      *zap.Logger
	repo     Repository
	accounts Accounts
}

func NewPolicy(cfg *config.LockoutConfig, log *zap.Logger, repo Repository, accounts Accounts) *Policy {
	c := *cfg
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.LockDuration <= 0 {
		c.LockDuration = 5 * time.Minute
	}
	if c.ExtendDuration <= 0 {
		c.ExtendDuration = time.Minute
	}
	return &Policy{
		config:   c,
		log:      log,
		repo:     repo,
		accounts: accounts,
	}
}

func (p *Policy) RecordFailure(ctx context.Context, normalizedEmail string, now time.Time) (FailureResult, error) {
	userID, found, err := p.accounts.LookupIDByEmail(ctx, normalizedEmail)
	if err != nil {
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if !found {
		return NotFound, nil
	}

	credential, err := p.repo.UpdateLocked(ctx, userID, func(c *Credential) error {
		p.applyFailure(c, now)
		return nil
	})
	if errors.Is(err, ErrCredentialNotFound) {
		return NotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("record failure: %w", err)
	}

	if credential.IsLocked(now) {
		p.log.Info("credential locked",
			zap.Int64("user_id", userID),
			zap.Timep("lock_until", credential.LockUntil))
		return Locked, nil
	}
	return BadCredentials, nil
}

// RecordSuccess clears the failure state. A user without a local
// credential is left untouched.
func (p *Policy) RecordSuccess(ctx context.Context, userID int64, now time.Time) error {
	_, err := p.repo.UpdateLocked(ctx, userID, func(c *Credential) error {
		c.FailedLoginCount = 0
		c.LastFailedAt = nil
		c.LockUntil = nil
		return nil
	})
	if errors.Is(err, ErrCredentialNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

func (p *Policy) applyFailure(c *Credential, now time.Time) {
	failedAt := now
	c.LastFailedAt = &failedAt

	// While locked the counter is frozen and every retry slides the lock.
	if c.IsLocked(now) {
		until := now.Add(p.config.ExtendDuration)
		c.LockUntil = &until
		return
	}

	c.FailedLoginCount++
	if c.FailedLoginCount >= p.config.MaxAttempts {
		until := now.Add(p.config.LockDuration)
		c.LockUntil = &until
		c.FailedLoginCount = 0
	}
}
