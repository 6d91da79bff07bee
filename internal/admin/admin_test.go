package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/auth"
	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/credential"
	"github.com/elskow/chef-identity/internal/denylist"
	"github.com/elskow/chef-identity/internal/device"
	"github.com/elskow/chef-identity/internal/ledger"
	"github.com/elskow/chef-identity/internal/session"
	"github.com/elskow/chef-identity/internal/user"
)

const testPassword = "Abcd1234!"

type testEnv struct {
	config   *config.AppConfig
	facade   *Facade
	auth     *auth.Service
	users    *user.Service
	devices  *device.Registry
	sessions *session.Service
	store    *session.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.AppConfig{
		Environment: "testing",
		Auth: config.AuthConfig{
			JWTSecret:         "admin-test-secret",
			Issuer:            "test",
			TokenExpiration:   time.Hour,
			MinPasswordLength: 8,
			BcryptCost:        4,
			SessionCookie:     "SESSION",
		},
		Lockout: config.LockoutConfig{MaxAttempts: 5, LockDuration: 5 * time.Minute, ExtendDuration: time.Minute},
		Session: config.SessionConfig{TTL: time.Hour},
	}

	userRepo := user.NewInMemoryRepository()
	credRepo := credential.NewInMemoryRepository()
	store := session.NewMemoryStore()
	users := user.NewService(log, userRepo)
	devices := device.NewRegistry(log, device.NewInMemoryRepository())
	sessions := session.NewService(log, session.NewInMemoryRepository(), store)
	ledgerSvc := ledger.NewService(&cfg.Ledger, log, ledger.NewInMemoryRepository())
	deny := denylist.NewService(&cfg.Denylist, log, denylist.NewInMemoryRepository())
	codec := auth.NewJWTCodec(&cfg.Auth)

	authSvc := auth.NewService(auth.Params{
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

	return &testEnv{
		config: cfg,
		facade: NewFacade(Params{
			Logger:   log,
			Users:    users,
			Devices:  devices,
			Sessions: sessions,
			Ledger:   ledgerSvc,
			Auth:     authSvc,
		}),
		auth:     authSvc,
		users:    users,
		devices:  devices,
		sessions: sessions,
		store:    store,
	}
}

func (e *testEnv) signUp(t *testing.T, email string) *user.Account {
	t.Helper()
	account, err := e.auth.SignUp(context.Background(), email, testPassword, "")
	require.NoError(t, err)
	return account
}

func (e *testEnv) login(t *testing.T, email, deviceID string) string {
	t.Helper()
	result, err := e.auth.LoginLocal(context.Background(), email, testPassword, auth.Client{DeviceID: deviceID, IP: "127.0.0.1"})
	require.NoError(t, err)
	return result.SessionID
}
