package user

import (
	"time"

	"github.com/elskow/chef-identity/internal/provider"
)

type Account struct {
	ID                int64              `gorm:"primaryKey" json:"id"`
	Email             *string            `gorm:"uniqueIndex" json:"email"`
	EmailVerified     bool               `gorm:"not null;default:false" json:"emailVerified"`
	Name              *string            `json:"name"`
	Nickname          *string            `json:"nickname"`
	ProfileImageURL   *string            `gorm:"column:profile_image_url" json:"profileImageUrl"`
	ThumbnailImageURL *string            `gorm:"column:thumbnail_image_url" json:"thumbnailImageUrl"`
	LastLoginProvider *provider.Provider `json:"lastLoginProvider"`
	LastLoginAt       *time.Time         `json:"lastLoginAt"`
	SuspendedAt       *time.Time         `json:"suspendedAt"`
	SuspendedUntil    *time.Time         `json:"suspendedUntil"`
	SuspendedReason   *string            `json:"suspendedReason"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func (Account) TableName() string {
	return "user_accounts"
}

// IsSuspended is true from SuspendedAt until SuspendedUntil, or forever
// when no end is set.
func (a *Account) IsSuspended(now time.Time) bool {
	if a.SuspendedAt == nil {
		return false
	}
	return a.SuspendedUntil == nil || now.Before(*a.SuspendedUntil)
}

// Identity links an external provider account to a user.
type Identity struct {
	ID             int64             `gorm:"primaryKey" json:"id"`
	UserID         int64             `gorm:"index;not null" json:"userId"`
	Provider       provider.Provider `gorm:"not null" json:"provider"`
	ProviderUserID string            `gorm:"not null" json:"providerUserId"`
	Email          *string           `json:"email"`
	RawAttributes  map[string]any    `gorm:"serializer:json;type:jsonb" json:"rawAttributes,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func (Identity) TableName() string {
	return "oauth_identities"
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
