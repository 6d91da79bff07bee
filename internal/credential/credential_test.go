package credential

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
)

type stubAccounts struct {
	mu     sync.Mutex
	emails map[string]int64
}

func (s *stubAccounts) LookupIDByEmail(_ context.Context, email string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[email]
	return id, ok, nil
}

func newTestConfig() *config.LockoutConfig {
	return &config.LockoutConfig{
		MaxAttempts:    5,
		LockDuration:   5 * time.Minute,
		ExtendDuration: time.Minute,
	}
}

// newTestPolicy seeds a credential for user 1 registered under a@b.com.
func newTestPolicy(t *testing.T) (*Policy, *InMemoryRepository) {
	repo := NewInMemoryRepository()
	require.NoError(t, repo.Create(context.Background(), &Credential{
		UserID:            1,
		PasswordHash:      "hash",
		PasswordUpdatedAt: time.Now(),
	}))
	accounts := &stubAccounts{emails: map[string]int64{"a@b.com": 1, "orphan@b.com": 2}}
	return NewPolicy(newTestConfig(), zap.NewNop(), repo, accounts), repo
}
