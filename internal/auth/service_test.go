package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elskow/chef-identity/internal/denylist"
	"github.com/elskow/chef-identity/internal/ledger"
	"github.com/elskow/chef-identity/internal/pagination"
	"github.com/elskow/chef-identity/internal/principal"
	"github.com/elskow/chef-identity/internal/provider"
	"github.com/elskow/chef-identity/internal/session"
)

func TestService_SignUp(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: " A@B.com ", password: testPassword},
		{name: "short password", email: "c@d.com", password: "short", wantErr: ErrInvalidInput},
		{name: "bad email", email: "not-an-email", password: testPassword, wantErr: ErrInvalidInput},
		{name: "display name form", email: "Bob <bob@x.com>", password: testPassword, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			account, err := env.service.SignUp(context.Background(), tt.email, tt.password, "nick")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@b.com", *account.Email)

			cred, err := env.credentials.FindByUserID(context.Background(), account.ID)
			require.NoError(t, err)
			assert.NotEqual(t, testPassword, cred.PasswordHash)
		})
	}
}

func TestService_SignUp_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)

	_, err := env.service.SignUp(context.Background(), "A@b.com", testPassword, "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestService_LoginLocal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.signUp(t)

	result, err := env.service.LoginLocal(ctx, testEmail, testPassword, Client{DeviceID: "D1", IP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, account.ID, result.Account.ID)
	assert.Equal(t, "D1", result.DeviceID)

	data, ok, err := env.store.Get(ctx, result.SessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, account.ID, data.UserID)

	binding, ok, err := env.sessions.FindActive(ctx, result.SessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "D1", binding.DeviceID)
	assert.Equal(t, provider.Local, binding.Provider)

	devices, err := env.devices.List(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "10.0.0.1", *devices[0].LastIP)

	reloaded, err := env.users.Get(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginProvider)
	assert.Equal(t, provider.Local, *reloaded.LastLoginProvider)

	assert.Equal(t, []string{""}, env.attemptCodes(t))
}

func TestService_LoginLocal_Lockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signUp(t)

	for i := 1; i <= 4; i++ {
		_, err := env.service.LoginLocal(ctx, testEmail, "wrong-password", Client{})
		assert.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
	}
	_, err := env.service.LoginLocal(ctx, testEmail, "wrong-password", Client{})
	assert.ErrorIs(t, err, ErrAccountLocked)

	// The right password does not help while locked.
	_, err = env.service.LoginLocal(ctx, testEmail, testPassword, Client{})
	assert.ErrorIs(t, err, ErrAccountLocked)

	codes := env.attemptCodes(t)
	require.Len(t, codes, 6)
	assert.Equal(t, ledger.CodeLocked, codes[0])
	assert.Equal(t, ledger.CodeLocked, codes[1])
	assert.Equal(t, ledger.CodeBadCredentials, codes[2])

	env.now = env.now.Add(10 * time.Minute)
	_, err = env.service.LoginLocal(ctx, testEmail, testPassword, Client{})
	require.NoError(t, err)
}

func TestService_LoginLocal_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.service.LoginLocal(ctx, "nobody@b.com", testPassword, Client{})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, []string{ledger.CodeNotFound}, env.attemptCodes(t))
	})

	t.Run("suspended account", func(t *testing.T) {
		env := newTestEnv(t)
		account := env.signUp(t)
		_, err := env.users.Suspend(ctx, account.ID, "abuse", nil)
		require.NoError(t, err)

		_, err = env.service.LoginLocal(ctx, testEmail, testPassword, Client{})
		assert.ErrorIs(t, err, ErrAccountSuspended)
		assert.Equal(t, []string{ledger.CodeSuspended}, env.attemptCodes(t))
	})

	t.Run("blocked device", func(t *testing.T) {
		env := newTestEnv(t)
		account := env.signUp(t)
		_, err := env.devices.Block(ctx, account.ID, "D1", "stolen")
		require.NoError(t, err)

		_, err = env.service.LoginLocal(ctx, testEmail, testPassword, Client{DeviceID: "D1"})
		assert.ErrorIs(t, err, ErrDeviceBlocked)
		assert.Equal(t, []string{ledger.CodeDeviceBlocked}, env.attemptCodes(t))

		bindings, err := env.sessions.List(ctx, account.ID, session.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, bindings)
	})
}

func TestService_Logout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signUp(t)

	result, err := env.service.LoginLocal(ctx, testEmail, testPassword, Client{})
	require.NoError(t, err)
	require.NoError(t, env.service.Logout(ctx, result.SessionID))

	_, ok, err := env.store.Get(ctx, result.SessionID)
	require.NoError(t, err)
	assert.False(t, ok)

	binding, err := env.sessions.Get(ctx, result.SessionID)
	require.NoError(t, err)
	assert.False(t, binding.Active())
	assert.Equal(t, session.ReasonLogout, *binding.RevokedReason)

	assert.ErrorIs(t, env.service.Logout(ctx, ""), principal.ErrNoPrincipal)
}

func TestService_TokenLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.signUp(t)

	issued, err := env.service.IssueToken(ctx, testEmail, testPassword, Client{DeviceID: "cli"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.TokenID)

	caller, err := env.service.Authenticate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, caller.UserID)
	assert.Equal(t, "cli", caller.DeviceID)
	assert.Equal(t, issued.TokenID, caller.TokenID)

	require.NoError(t, env.service.RevokeToken(ctx, issued.Token, "LOGOUT"))
	require.NoError(t, env.service.RevokeToken(ctx, issued.Token, "again"))

	_, err = env.service.Authenticate(ctx, issued.Token)
	assert.ErrorIs(t, err, denylist.ErrTokenRevoked)

	revoked, err := env.denylist.IsRevoked(ctx, issued.TokenID, "")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestService_Authenticate_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.signUp(t)

	issued, err := env.service.IssueToken(ctx, testEmail, testPassword, Client{DeviceID: "D9"})
	require.NoError(t, err)

	_, err = env.service.Authenticate(ctx, issued.Token+"x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.devices.Block(ctx, account.ID, "D9", "lost")
	require.NoError(t, err)
	_, err = env.service.Authenticate(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrDeviceBlocked)
}

func TestService_LoginOAuth2(t *testing.T) {
	ctx := context.Background()
	attrs := map[string]any{
		"id":            float64(4242),
		"kakao_account": map[string]any{"email": "k@example.com", "profile": map[string]any{"nickname": "kay"}},
	}

	t.Run("repeat logins resolve one user", func(t *testing.T) {
		env := newTestEnv(t)
		first, err := env.service.LoginOAuth2(ctx, "kakao", attrs, Client{DeviceID: "phone"})
		require.NoError(t, err)
		second, err := env.service.LoginOAuth2(ctx, "kakao", attrs, Client{DeviceID: "phone"})
		require.NoError(t, err)

		assert.Equal(t, first.Account.ID, second.Account.ID)
		assert.NotEqual(t, first.SessionID, second.SessionID)

		binding, ok, err := env.sessions.FindActive(ctx, second.SessionID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, provider.Kakao, binding.Provider)
	})

	t.Run("existing email links to the local account", func(t *testing.T) {
		env := newTestEnv(t)
		local, err := env.service.SignUp(ctx, "k@example.com", testPassword, "local")
		require.NoError(t, err)

		result, err := env.service.LoginOAuth2(ctx, "kakao", attrs, Client{})
		require.NoError(t, err)
		assert.Equal(t, local.ID, result.Account.ID)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.service.LoginOAuth2(ctx, "github", attrs, Client{})
		assert.ErrorIs(t, err, ErrInvalidInput)

		page, err := env.ledger.Search(ctx, ledger.Filter{Provider: provider.Unknown}, pagination.Request{})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.False(t, page.Items[0].Success)
	})
}

func TestEndToEnd_BlockedDeviceRejectedAtGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.signUp(t)

	result, err := env.service.LoginLocal(ctx, testEmail, testPassword, Client{DeviceID: "D1"})
	require.NoError(t, err)

	_, err = env.devices.Block(ctx, account.ID, "D1", "stolen")
	require.NoError(t, err)

	gate := session.NewGate(env.service.log, env.sessions, env.store, env.devices, "SESSION")
	decision, _, err := gate.Evaluate(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.RejectBlockedDevice, decision)

	// The device block alone leaves the binding in place.
	_, ok, err := env.sessions.FindActive(ctx, result.SessionID)
	require.NoError(t, err)
	assert.True(t, ok)
}
