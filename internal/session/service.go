package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/device"
	"github.com/elskow/chef-identity/internal/provider"
)

var ErrInvalidSessionID = errors.New("invalid session id")

// Service owns the session binding table, the source of truth for whether
// a session id is still valid.
type Service struct {
	log   *zap.Logger
	repo  Repository
	store Store
	now   func() time.Time
}

func NewService(log *zap.Logger, repo Repository, store Store) *Service {
	return &Service{log: log, repo: repo, store: store, now: time.Now}
}

// Bind creates or overwrites the binding for sessionID and re-activates it.
func (s *Service) Bind(ctx context.Context, sessionID string, userID int64, deviceID string, p provider.Provider) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > MaxSessionIDLength {
		return ErrInvalidSessionID
	}
	binding := &Binding{
		SessionID:      sessionID,
		UserID:         userID,
		DeviceID:       device.NormalizeID(deviceID),
		Provider:       p,
		LastAccessedAt: s.now(),
	}
	if err := s.repo.Upsert(ctx, binding); err != nil {
		return fmt.Errorf("bind session: %w", err)
	}
	return nil
}

// FindActive returns the binding only while it is not revoked.
func (s *Service) FindActive(ctx context.Context, sessionID string) (*Binding, bool, error) {
	binding, err := s.repo.FindBySessionID(ctx, sessionID)
	if errors.Is(err, ErrBindingNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find session: %w", err)
	}
	if !binding.Active() {
		return nil, false, nil
	}
	return binding, true, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*Binding, error) {
	return s.repo.FindBySessionID(ctx, sessionID)
}

func (s *Service) List(ctx context.Context, userID int64, filter ListFilter) ([]Binding, error) {
	return s.repo.ListByUser(ctx, userID, filter)
}

func (s *Service) Touch(ctx context.Context, sessionID string) error {
	if _, err := s.repo.Touch(ctx, sessionID, s.now()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke marks an active binding revoked. The first reason recorded wins.
func (s *Service) Revoke(ctx context.Context, sessionID, reason string) error {
	changed, err := s.repo.Revoke(ctx, sessionID, reason, s.now())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if changed {
		s.log.Info("session revoked",
			zap.String("session_id", sessionID),
			zap.String("reason", reason))
	}
	return nil
}

// RevokeAll revokes every active binding of the user, or only those on
// deviceID when it is not empty.
func (s *Service) RevokeAll(ctx context.Context, userID int64, deviceID, reason string) (int64, error) {
	n, err := s.repo.RevokeAll(ctx, userID, deviceID, reason, s.now())
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}

func (s *Service) ActiveSessionIDs(ctx context.Context, userID int64, deviceID string) ([]string, error) {
	return s.repo.ActiveSessionIDs(ctx, userID, deviceID)
}

func (s *Service) CountActiveByUsers(ctx context.Context, userIDs []int64) (map[int64]int64, error) {
	return s.repo.CountActiveByUsers(ctx, userIDs)
}

// Terminate deletes the store entry and then revokes the binding.
func (s *Service) Terminate(ctx context.Context, sessionID, reason string) error {
	if err := s.store.DeleteByID(ctx, sessionID); err != nil {
		s.log.Warn("failed to delete session from store",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	return s.Revoke(ctx, sessionID, reason)
}

// ForceLogout terminates every active session of the user, optionally
// scoped to one device, and returns how many were terminated.
func (s *Service) ForceLogout(ctx context.Context, userID int64, deviceID, reason string) (int, error) {
	if reason == "" {
		reason = ReasonForcedLogout
	}
	ids, err := s.repo.ActiveSessionIDs(ctx, userID, deviceID)
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}
	for _, id := range ids {
		if err := s.Terminate(ctx, id, reason); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// Logout revokes the binding with reason LOGOUT and drops the store entry.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.Revoke(ctx, sessionID, ReasonLogout); err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
