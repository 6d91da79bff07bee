package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/pagination"
	"github.com/elskow/chef-identity/internal/provider"
)

var ErrInvalidSuspension = errors.New("suspension end must be in the future")

// ProfileUpdate carries a partial profile change; nil fields are kept.
type ProfileUpdate struct {
	Name              *string `json:"name"`
	Nickname          *string `json:"nickname"`
	ProfileImageURL   *string `json:"profileImageUrl"`
	ThumbnailImageURL *string `json:"thumbnailImageUrl"`
	EmailVerified     *bool   `json:"emailVerified"`
}

type Service struct {
	log  *zap.Logger
	repo Repository
	now  func() time.Time
}

func NewService(log *zap.Logger, repo Repository) *Service {
	return &Service{log: log, repo: repo, now: time.Now}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Create(ctx context.Context, email, nickname string) (*Account, error) {
	account := &Account{
		Email:    stringPtr(NormalizeEmail(email)),
		Nickname: stringPtr(strings.TrimSpace(nickname)),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.repo.FindByEmail(ctx, NormalizeEmail(email))
}

func (s *Service) Identities(ctx context.Context, userID int64) ([]Identity, error) {
	return s.repo.ListIdentities(ctx, userID)
}

func (s *Service) ProvidersByUsers(ctx context.Context, userIDs []int64) (map[int64][]provider.Provider, error) {
	return s.repo.ProvidersByUsers(ctx, userIDs)
}

func (s *Service) List(ctx context.Context, filter Filter, page pagination.Request) (pagination.Result[Account], error) {
	page = page.Normalize()
	accounts, total, err := s.repo.List(ctx, filter, page, s.now())
	if err != nil {
		return pagination.Result[Account]{}, fmt.Errorf("list users: %w", err)
	}
	return pagination.NewResult(accounts, page, total), nil
}

// Suspend blocks the account until the given time, or indefinitely when
// until is nil.
func (s *Service) Suspend(ctx context.Context, id int64, reason string, until *time.Time) (*Account, error) {
	now := s.now()
	if until != nil && !until.After(now) {
		return nil, ErrInvalidSuspension
	}
	return s.repo.Update(ctx, id, func(a *Account) error {
		a.SuspendedAt = &now
		a.SuspendedUntil = until
		a.SuspendedReason = stringPtr(strings.TrimSpace(reason))
		return nil
	})
}

func (s *Service) Unsuspend(ctx context.Context, id int64) (*Account, error) {
	return s.repo.Update(ctx, id, func(a *Account) error {
		a.SuspendedAt = nil
		a.SuspendedUntil = nil
		a.SuspendedReason = nil
		return nil
	})
}

func (s *Service) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*Account, error) {
	return s.repo.Update(ctx, id, func(a *Account) error {
		if update.Name != nil {
			a.Name = stringPtr(strings.TrimSpace(*update.Name))
		}
		if update.Nickname != nil {
			a.Nickname = stringPtr(strings.TrimSpace(*update.Nickname))
		}
		if update.ProfileImageURL != nil {
			a.ProfileImageURL = stringPtr(strings.TrimSpace(*update.ProfileImageURL))
		}
		if update.ThumbnailImageURL != nil {
			a.ThumbnailImageURL = stringPtr(strings.TrimSpace(*update.ThumbnailImageURL))
		}
		if update.EmailVerified != nil {
			a.EmailVerified = *update.EmailVerified
		}
		return nil
	})
}

func (s *Service) TouchLastLogin(ctx context.Context, id int64, p provider.Provider) error {
	now := s.now()
	_, err := s.repo.Update(ctx, id, func(a *Account) error {
		a.LastLoginProvider = &p
		a.LastLoginAt = &now
		return nil
	})
	return err
}
