package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/credential"
	"github.com/elskow/chef-identity/internal/denylist"
	"github.com/elskow/chef-identity/internal/device"
	"github.com/elskow/chef-identity/internal/ledger"
	"github.com/elskow/chef-identity/internal/pagination"
	"github.com/elskow/chef-identity/internal/session"
	"github.com/elskow/chef-identity/internal/user"
)

const (
	testEmail    = "a@b.com"
	testPassword = "Abcd1234!"
)

type testEnv struct {
	config      *config.AppConfig
	service     *Service
	users       *user.Service
	credentials *credential.InMemoryRepository
	devices     *device.Registry
	sessions    *session.Service
	store       *session.MemoryStore
	ledger      *ledger.Service
	denylist    *denylist.Service
	codec       *JWTCodec
	now         time.Time
}

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "testing",
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret-key",
			Issuer:            "chef-identity-test",
			TokenExpiration:   time.Hour,
			MinPasswordLength: 8,
			BcryptCost:        4,
			DeviceHeader:      "X-Device-Id",
			SessionCookie:     "SESSION",
		},
		Lockout:   config.LockoutConfig{MaxAttempts: 5, LockDuration: 5 * time.Minute, ExtendDuration: time.Minute},
		Session:   config.SessionConfig{TTL: time.Hour},
		Denylist:  config.DenylistConfig{DefaultTTL: time.Hour},
		Ledger:    config.LedgerConfig{StatsWindow: 7 * 24 * time.Hour, TopLimit: 20},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	cfg := newTestConfig()

	userRepo := user.NewInMemoryRepository()
	credRepo := credential.NewInMemoryRepository()
	store := session.NewMemoryStore()
	devices := device.NewRegistry(log, device.NewInMemoryRepository())
	sessions := session.NewService(log, session.NewInMemoryRepository(), store)
	ledgerSvc := ledger.NewService(&cfg.Ledger, log, ledger.NewInMemoryRepository())
	deny := denylist.NewService(&cfg.Denylist, log, denylist.NewInMemoryRepository())
	codec := NewJWTCodec(&cfg.Auth)
	users := user.NewService(log, userRepo)

	env := &testEnv{
		config:      cfg,
		users:       users,
		credentials: credRepo,
		devices:     devices,
		sessions:    sessions,
		store:       store,
		ledger:      ledgerSvc,
		denylist:    deny,
		codec:       codec,
		now:         time.Now().UTC().Truncate(time.Second),
	}
	env.service = NewService(Params{
		Config:      cfg,
		Logger:      log,
		Users:       users,
		OAuth:       user.NewOAuthService(log, userRepo),
		Credentials: credRepo,
		Hasher:      credential.NewBcryptHasher(cfg.Auth.BcryptCost),
		Policy:      credential.NewPolicy(&cfg.Lockout, log, credRepo, userRepo),
		Devices:     devices,
		Sessions:    sessions,
		Store:       store,
		Ledger:      ledgerSvc,
		Denylist:    deny,
		Codec:       codec,
		Decoder:     denylist.NewRevocationAwareDecoder(codec, deny),
	})
	env.service.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) signUp(t *testing.T) *user.Account {
	t.Helper()
	account, err := e.service.SignUp(context.Background(), testEmail, testPassword, "tester")
	require.NoError(t, err)
	return account
}

// attemptCodes lists recorded error codes, newest first. Successes show as "".
func (e *testEnv) attemptCodes(t *testing.T) []string {
	t.Helper()
	page, err := e.ledger.Search(context.Background(), ledger.Filter{}, pagination.Request{Size: pagination.MaxSize})
	require.NoError(t, err)
	codes := make([]string, 0, len(page.Items))
	for _, a := range page.Items {
		if a.ErrorCode == nil {
			codes = append(codes, "")
			continue
		}
		codes = append(codes, *a.ErrorCode)
	}
	return codes
}
