package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/provider"
)

var ErrMissingProviderUserID = errors.New("provider user id missing from attributes")

// Profile is the provider-neutral view of an OAuth2 user.
type Profile struct {
	Provider       provider.Provider
	ProviderUserID string
	Email          string
	Nickname       string
	AvatarURL      string
	ThumbnailURL   string
}

func ParseProfile(registrationID string, attrs map[string]any) (Profile, error) {
	p, err := provider.FromRegistrationID(registrationID)
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{
		Provider:       p,
		ProviderUserID: ExtractProviderUserID(registrationID, attrs),
		Email:          strings.ToLower(ExtractEmail(registrationID, attrs)),
		Nickname:       ExtractNickname(registrationID, attrs),
		AvatarURL:      ExtractAvatarURL(registrationID, attrs),
		ThumbnailURL:   ExtractThumbnailURL(registrationID, attrs),
	}
	if profile.ProviderUserID == "" {
		return Profile{}, ErrMissingProviderUserID
	}
	return profile, nil
}

type OAuthService struct {
	log  *zap.Logger
	repo Repository
}

func NewOAuthService(log *zap.Logger, repo Repository) *OAuthService {
	return &OAuthService{log: log, repo: repo}
}

// UpsertFromOAuth2 resolves the user behind a provider identity, creating
// the user and the link on first login.
func (s *OAuthService) UpsertFromOAuth2(ctx context.Context, registrationID string, attrs map[string]any) (int64, string, error) {
	profile, err := ParseProfile(registrationID, attrs)
	if err != nil {
		return 0, "", err
	}

	var userID int64
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		identity, err := tx.FindIdentity(ctx, profile.Provider, profile.ProviderUserID)
		switch {
		case err == nil:
			userID = identity.UserID
		case errors.Is(err, ErrIdentityNotFound):
			userID, err = s.link(ctx, tx, profile, attrs)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("find identity: %w", err)
		}

		_, err = tx.Update(ctx, userID, func(a *Account) error {
			mergeProfile(a, profile)
			return nil
		})
		return err
	})
	if err != nil {
		return 0, "", err
	}
	return userID, profile.ProviderUserID, nil
}

func (s *OAuthService) link(ctx context.Context, tx Repository, profile Profile, attrs map[string]any) (int64, error) {
	account, err := s.resolveAccount(ctx, tx, profile)
	if err != nil {
		return 0, err
	}

	created, err := tx.CreateIdentity(ctx, &Identity{
		UserID:         account.ID,
		Provider:       profile.Provider,
		ProviderUserID: profile.ProviderUserID,
		Email:          stringPtr(profile.Email),
		RawAttributes:  attrs,
	})
	if err != nil {
		return 0, fmt.Errorf("create identity: %w", err)
	}
	if created {
		return account.ID, nil
	}

	// A concurrent first login linked the identity first; its user wins.
	winner, err := tx.FindIdentity(ctx, profile.Provider, profile.ProviderUserID)
	if err != nil {
		return 0, fmt.Errorf("re-resolve identity: %w", err)
	}
	s.log.Info("oauth identity race resolved",
		zap.String("provider", profile.Provider.String()),
		zap.Int64("user_id", winner.UserID))
	return winner.UserID, nil
}

func (s *OAuthService) resolveAccount(ctx context.Context, tx Repository, profile Profile) (*Account, error) {
	if profile.Email != "" {
		account, err := tx.FindByEmail(ctx, profile.Email)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("find account by email: %w", err)
		}
	}

	account := &Account{Email: stringPtr(profile.Email)}
	err := tx.Create(ctx, account)
	if errors.Is(err, ErrEmailTaken) {
		return tx.FindByEmail(ctx, profile.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// mergeProfile keeps a known email and otherwise prefers fresh provider data.
func mergeProfile(a *Account, profile Profile) {
	if a.Email == nil && profile.Email != "" {
		a.Email = stringPtr(profile.Email)
	}
	if profile.Nickname != "" {
		a.Nickname = stringPtr(profile.Nickname)
		if a.Name == nil {
			a.Name = stringPtr(profile.Nickname)
		}
	}
	if profile.AvatarURL != "" {
		a.ProfileImageURL = stringPtr(profile.AvatarURL)
	}
	if profile.ThumbnailURL != "" {
		a.ThumbnailImageURL = stringPtr(profile.ThumbnailURL)
	}
}
