package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/credential"
	"github.com/elskow/chef-identity/internal/denylist"
	"github.com/elskow/chef-identity/internal/device"
	"github.com/elskow/chef-identity/internal/ledger"
	"github.com/elskow/chef-identity/internal/principal"
	"github.com/elskow/chef-identity/internal/provider"
	"github.com/elskow/chef-identity/internal/session"
	"github.com/elskow/chef-identity/internal/user"
)

const maxEmailLength = 320

// Client describes the caller of a login request.
type Client struct {
	DeviceID  string
	IP        string
	UserAgent string
}

type LoginResult struct {
	Account   *user.Account
	SessionID string
	DeviceID  string
}

type TokenResult struct {
	Account   *user.Account
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

type Params struct {
	fx.In

	Config      *config.AppConfig
	Logger      *zap.Logger
	Users       *user.Service
	OAuth       *user.OAuthService
	Credentials credential.Repository
	Hasher      credential.PasswordHasher
	Policy      *credential.Policy
	Devices     *device.Registry
	Sessions    *session.Service
	Store       session.Store
	Ledger      *ledger.Service
	Denylist    *denylist.Service
	Codec       *JWTCodec
	Decoder     *denylist.RevocationAwareDecoder
}

// Service orchestrates both login modes: cookie sessions and bearer tokens.
type Service struct {
	config      *config.AuthConfig
	log         *zap.Logger
	users       *user.Service
	oauth       *user.OAuthService
	credentials credential.Repository
	hasher      credential.PasswordHasher
	policy      *credential.Policy
	devices     *device.Registry
	sessions    *session.Service
	store       session.Store
	ledger      *ledger.Service
	denylist    *denylist.Service
	codec       *JWTCodec
	decoder     *denylist.RevocationAwareDecoder
	now         func() time.Time
}

func NewService(p Params) *Service {
	return &Service{
		config:      &p.Config.Auth,
		log:         p.Logger,
		users:       p.Users,
		oauth:       p.OAuth,
		credentials: p.Credentials,
		hasher:      p.Hasher,
		policy:      p.Policy,
		devices:     p.Devices,
		sessions:    p.Sessions,
		store:       p.Store,
		ledger:      p.Ledger,
		denylist:    p.Denylist,
		codec:       p.Codec,
		decoder:     p.Decoder,
		now:         time.Now,
	}
}

// SignUp creates an account with a local password.
func (s *Service) SignUp(ctx context.Context, email, password, nickname string) (*user.Account, error) {
	email = user.NormalizeEmail(email)
	if !isValidEmail(email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	if err := credential.ValidatePassword(password, s.config.MinPasswordLength); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	account, err := s.users.Create(ctx, email, nickname)
	if errors.Is(err, user.ErrEmailTaken) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	now := s.now()
	err = s.credentials.Create(ctx, &credential.Credential{
		UserID:            account.ID,
		PasswordHash:      hash,
		PasswordUpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	s.log.Info("user signed up", zap.Int64("user_id", account.ID))
	return account, nil
}

// LoginLocal verifies a password login and opens a cookie session.
func (s *Service) LoginLocal(ctx context.Context, email, password string, client Client) (*LoginResult, error) {
	client.DeviceID = device.NormalizeID(client.DeviceID)
	account, err := s.authenticateLocal(ctx, email, password, client)
	if err != nil {
		return nil, err
	}

	sessionID, err := s.openSession(ctx, account.ID, provider.Local, "", client)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Account: account, SessionID: sessionID, DeviceID: client.DeviceID}, nil
}

// IssueToken verifies a password login and returns a bearer token instead
// of a session.
func (s *Service) IssueToken(ctx context.Context, email, password string, client Client) (*TokenResult, error) {
	client.DeviceID = device.NormalizeID(client.DeviceID)
	account, err := s.authenticateLocal(ctx, email, password, client)
	if err != nil {
		return nil, err
	}

	signed, token, err := s.codec.Issue(account.ID, client.DeviceID, provider.Local)
	if err != nil {
		return nil, err
	}
	s.recordLogin(ctx, account.ID, provider.Local, "", client)

	return &TokenResult{
		Account:   account,
		Token:     signed,
		TokenID:   token.ID,
		ExpiresAt: *token.ExpiresAt,
	}, nil
}

// LoginOAuth2 completes a login after the external OAuth2 handshake has
// produced the provider's user attributes.
func (s *Service) LoginOAuth2(ctx context.Context, registrationID string, attrs map[string]any, client Client) (*LoginResult, error) {
	client.DeviceID = device.NormalizeID(client.DeviceID)
	p, err := provider.FromRegistrationID(registrationID)
	if err != nil {
		s.RecordOAuth2Failure(ctx, "UNSUPPORTED_PROVIDER", err.Error(), client)
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	userID, providerUserID, err := s.oauth.UpsertFromOAuth2(ctx, registrationID, attrs)
	if err != nil {
		if errors.Is(err, user.ErrMissingProviderUserID) {
			s.RecordOAuth2Failure(ctx, "INVALID_USER_INFO", err.Error(), client)
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("reconcile oauth2 identity: %w", err)
	}

	account, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if account.IsSuspended(s.now()) {
		s.recordFailure(ctx, p, &userID, providerUserID, client, ledger.CodeSuspended, "account suspended")
		return nil, ErrAccountSuspended
	}
	if err := s.checkDevice(ctx, p, userID, providerUserID, client); err != nil {
		return nil, err
	}

	sessionID, err := s.openSession(ctx, userID, p, providerUserID, client)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Account: account, SessionID: sessionID, DeviceID: client.DeviceID}, nil
}

// RecordOAuth2Failure logs a failed handshake. The provider is unknown at
// that point, so it is recorded as UNKNOWN.
func (s *Service) RecordOAuth2Failure(ctx context.Context, errorCode, message string, client Client) {
	s.recordFailure(ctx, provider.Unknown, nil, "", client, errorCode, message)
}

// Logout ends a cookie session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return principal.ErrNoPrincipal
	}
	return s.sessions.Logout(ctx, sessionID)
}

// RevokeToken denylists a bearer token until it expires. Revoking the
// same token again succeeds.
func (s *Service) RevokeToken(ctx context.Context, raw, reason string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	token, err := s.codec.Decode(ctx, raw)
	if err != nil {
		return err
	}
	return s.denylist.Revoke(ctx, raw, token.ID, token.ExpiresAt, reason)
}

// Authenticate resolves a bearer token to its principal. Revoked tokens
// and tokens bound to a blocked device are rejected.
func (s *Service) Authenticate(ctx context.Context, raw string) (principal.Principal, error) {
	token, err := s.decoder.Decode(ctx, raw)
	if err != nil {
		if errors.Is(err, denylist.ErrTokenRevoked) || errors.Is(err, ErrInvalidToken) {
			return principal.Principal{}, err
		}
		return principal.Principal{}, fmt.Errorf("decode token: %w", err)
	}

	userID, deviceID, p, err := principalClaims(token)
	if err != nil {
		return principal.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	blocked, err := s.devices.IsBlocked(ctx, userID, deviceID)
	if err != nil {
		return principal.Principal{}, err
	}
	if blocked {
		return principal.Principal{}, ErrDeviceBlocked
	}

	return principal.Principal{
		UserID:   userID,
		DeviceID: deviceID,
		Provider: p,
		TokenID:  token.ID,
	}, nil
}

// Me loads the account of the authenticated caller.
func (s *Service) Me(ctx context.Context) (*user.Account, error) {
	caller, err := principal.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.users.Get(ctx, caller.UserID)
}

func (s *Service) authenticateLocal(ctx context.Context, email, password string, client Client) (*user.Account, error) {
	now := s.now()
	email = user.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	account, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, user.ErrUserNotFound) {
		// Spend a hash so unknown emails cost as much as bad passwords.
		_, _ = s.hasher.Hash(password)
		s.recordFailure(ctx, provider.Local, nil, "", client, ledger.CodeNotFound, "unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	userID := account.ID

	cred, err := s.credentials.FindByUserID(ctx, userID)
	if errors.Is(err, credential.ErrCredentialNotFound) {
		s.recordFailure(ctx, provider.Local, &userID, "", client, ledger.CodeNotFound, "no local credential")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}

	if cred.IsLocked(now) || !s.hasher.Matches(password, cred.PasswordHash) {
		result, err := s.policy.RecordFailure(ctx, email, now)
		if err != nil {
			return nil, err
		}
		s.recordFailure(ctx, provider.Local, &userID, "", client, string(result), "local login failed")
		if result == credential.Locked {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if account.IsSuspended(now) {
		s.recordFailure(ctx, provider.Local, &userID, "", client, ledger.CodeSuspended, "account suspended")
		return nil, ErrAccountSuspended
	}
	if err := s.policy.RecordSuccess(ctx, userID, now); err != nil {
		return nil, err
	}
	if err := s.checkDevice(ctx, provider.Local, userID, "", client); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) checkDevice(ctx context.Context, p provider.Provider, userID int64, providerUserID string, client Client) error {
	blocked, err := s.devices.IsBlocked(ctx, userID, client.DeviceID)
	if err != nil {
		return err
	}
	if blocked {
		s.recordFailure(ctx, p, &userID, providerUserID, client, ledger.CodeDeviceBlocked, "blocked device")
		return ErrDeviceBlocked
	}
	return nil
}

// openSession creates the store entry, records the login and binds the
// session to the device.
func (s *Service) openSession(ctx context.Context, userID int64, p provider.Provider, providerUserID string, client Client) (string, error) {
	sessionID, err := s.store.Create(ctx, session.Data{
		UserID:    userID,
		DeviceID:  client.DeviceID,
		Provider:  p,
		CreatedAt: s.now(),
	})
	if err != nil {
		return "", err
	}

	s.recordLogin(ctx, userID, p, providerUserID, client)

	if err := s.sessions.Bind(ctx, sessionID, userID, client.DeviceID, p); err != nil {
		if delErr := s.store.DeleteByID(ctx, sessionID); delErr != nil {
			s.log.Warn("failed to drop unbound session", zap.Error(delErr))
		}
		return "", err
	}
	return sessionID, nil
}

func (s *Service) recordLogin(ctx context.Context, userID int64, p provider.Provider, providerUserID string, client Client) {
	if err := s.users.TouchLastLogin(ctx, userID, p); err != nil {
		s.log.Warn("failed to update last login", zap.Int64("user_id", userID), zap.Error(err))
	}
	s.ledger.RecordQuietly(ctx, ledger.Attempt{
		Success:        true,
		Provider:       p,
		UserID:         &userID,
		ProviderUserID: providerUserID,
		DeviceID:       client.DeviceID,
		IP:             client.IP,
		UserAgent:      client.UserAgent,
	})
	if _, err := s.devices.UpsertLogin(ctx, userID, client.DeviceID, client.IP, client.UserAgent); err != nil {
		s.log.Warn("failed to record device login",
			zap.Int64("user_id", userID),
			zap.String("device_id", client.DeviceID),
			zap.Error(err))
	}
}

func (s *Service) recordFailure(ctx context.Context, p provider.Provider, userID *int64, providerUserID string, client Client, code, message string) {
	s.log.Info("login rejected",
		zap.String("provider", p.String()),
		zap.Int64p("user_id", userID),
		zap.String("error_code", code))
	s.ledger.RecordQuietly(ctx, ledger.Attempt{
		Success:        false,
		Provider:       p,
		UserID:         userID,
		ProviderUserID: providerUserID,
		DeviceID:       client.DeviceID,
		IP:             client.IP,
		UserAgent:      client.UserAgent,
		ErrorCode:      code,
		ErrorMessage:   message,
	})
}

func isValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
