package ledger

import (
	"time"

	"github.com/elskow/chef-identity/internal/provider"
)

// Error codes recorded for failed attempts.
const (
	CodeBadCredentials = "BAD_CREDENTIALS"
	CodeNotFound       = "NOT_FOUND"
	CodeLocked         = "LOCKED"
	CodeDeviceBlocked  = "DEVICE_BLOCKED"
	CodeSuspended      = "SUSPENDED"
)

const (
	maxIPLength        = 100
	maxUserAgentLength = 1000
	maxMessageLength   = 1000
	maxIdentityLength  = 320
	maxDeviceIDLength  = 255
	maxErrorCodeLength = 100
)

// LoginAttempt is an immutable audit record of one authentication attempt.
type LoginAttempt struct {
	ID             int64             `gorm:"primaryKey" json:"id"`
	Success        bool              `gorm:"not null" json:"success"`
	Provider       provider.Provider `json:"provider"`
	UserID         *int64            `json:"userId,omitempty"`
	ProviderUserID *string           `json:"providerUserId,omitempty"`
	DeviceID       *string           `json:"deviceId,omitempty"`
	IP             *string           `gorm:"column:ip" json:"ip,omitempty"`
	UserAgent      *string           `json:"userAgent,omitempty"`
	ErrorCode      *string           `json:"errorCode,omitempty"`
	ErrorMessage   *string           `json:"errorMessage,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func (LoginAttempt) TableName() string {
	return "login_attempts"
}

// Attempt is the input to Record. Blank strings are stored as NULL.
type Attempt struct {
	Success        bool
	Provider       provider.Provider
	UserID         *int64
	ProviderUserID string
	DeviceID       string
	IP             string
	UserAgent      string
	ErrorCode      string
	ErrorMessage   string
}

type KeyCount struct {
	Key   string `gorm:"column:group_key" json:"key"`
	Count int64  `gorm:"column:cnt" json:"count"`
}

type Stats struct {
	From               time.Time  `json:"from"`
	To                 time.Time  `json:"to"`
	Total              int64      `json:"total"`
	Success            int64      `json:"success"`
	Failure            int64      `json:"failure"`
	ByProvider         []KeyCount `json:"byProvider"`
	FailureByErrorCode []KeyCount `json:"failureByErrorCode"`
	TopFailedIPs       []KeyCount `json:"topFailedIps"`
	TopFailedDeviceIDs []KeyCount `json:"topFailedDeviceIds"`
}

// StatsQuery selects the attempts aggregated by Stats. Nil bounds default to
// a trailing window ending now.
type StatsQuery struct {
	Provider provider.Provider
	UserID   *int64
	DeviceID string
	IP       string
	From     *time.Time
	To       *time.Time
	TopLimit int
}
