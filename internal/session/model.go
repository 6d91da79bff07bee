package session

import (
	"time"

	"github.com/elskow/chef-identity/internal/provider"
)

const MaxSessionIDLength = 100

const (
	ReasonLogout       = "LOGOUT"
	ReasonForcedLogout = "FORCED_LOGOUT"
)

// Binding ties a session id to the user and device that created it. A nil
// RevokedAt means the session is active.
type Binding struct {
	ID             int64             `gorm:"primaryKey" json:"id"`
	SessionID      string            `gorm:"uniqueIndex;not null" json:"sessionId"`
	UserID         int64             `gorm:"index:idx_user_session_bindings_user_device;not null" json:"userId"`
	DeviceID       string            `gorm:"index:idx_user_session_bindings_user_device;not null" json:"deviceId"`
	Provider       provider.Provider `gorm:"not null" json:"provider"`
	LastAccessedAt time.Time         `json:"lastAccessedAt"`
	RevokedAt      *time.Time        `json:"revokedAt"`
	RevokedReason  *string           `json:"revokedReason"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func (Binding) TableName() string {
	return "user_session_bindings"
}

func (b *Binding) Active() bool {
	return b.RevokedAt == nil
}

// ListFilter scopes a per-user session listing. An empty DeviceID means all
// devices.
type ListFilter struct {
	DeviceID   string
	ActiveOnly bool
}
