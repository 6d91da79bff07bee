package device

import (
	"strings"
	"time"

	"github.com/elskow/chef-identity/internal/strutil"
)

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusBlocked Status = "BLOCKED"
)

const (
	// UnknownDevice stands in for requests that carry no device id.
	UnknownDevice = "unknown"

	MaxDeviceIDLength  = 255
	MaxIPLength        = 100
	MaxUserAgentLength = 1000
)

type Device struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	UserID        int64      `gorm:"not null;uniqueIndex:uk_user_devices_user_device" json:"userId"`
	DeviceID      string     `gorm:"not null;uniqueIndex:uk_user_devices_user_device" json:"deviceId"`
	Status        Status     `gorm:"not null;default:ACTIVE" json:"status"`
	BlockedReason *string    `json:"blockedReason"`
	BlockedAt     *time.Time `json:"blockedAt"`
	LastLoginAt   *time.Time `json:"lastLoginAt"`
	LastIP        *string    `gorm:"column:last_ip" json:"lastIp"`
	LastUserAgent *string    `json:"lastUserAgent"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (Device) TableName() string {
	return "user_devices"
}

func (d *Device) Blocked() bool {
	return d.Status == StatusBlocked
}

// NormalizeID trims and truncates a client device id, mapping blanks to
// UnknownDevice.
func NormalizeID(deviceID string) string {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return UnknownDevice
	}
	return strutil.Truncate(deviceID, MaxDeviceIDLength)
}

// cleanMeta returns nil for blank values so they never overwrite known data.
func cleanMeta(value string, max int) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	value = strutil.Truncate(value, max)
	return &value
}
