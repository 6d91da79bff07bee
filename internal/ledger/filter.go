package ledger

import (
	"time"

	"gorm.io/gorm"

	"github.com/elskow/chef-identity/internal/provider"
)

// Filter composes the optional search criteria over login attempts. Time
// bounds are inclusive.
type Filter struct {
	Success   *bool
	Provider  provider.Provider
	UserID    *int64
	DeviceID  string
	IP        string
	ErrorCode string
	From      *time.Time
	To        *time.Time
}

func (f Filter) apply(db *gorm.DB) *gorm.DB {
	if f.Success != nil {
		db = db.Where("success = ?", *f.Success)
	}
	if f.Provider != "" {
		db = db.Where("provider = ?", f.Provider)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.DeviceID != "" {
		db = db.Where("device_id = ?", f.DeviceID)
	}
	if f.IP != "" {
		db = db.Where("ip = ?", f.IP)
	}
	if f.ErrorCode != "" {
		db = db.Where("error_code = ?", f.ErrorCode)
	}
	if f.From != nil {
		db = db.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("created_at <= ?", *f.To)
	}
	return db
}

func (f Filter) matches(a *LoginAttempt) bool {
	if f.Success != nil && a.Success != *f.Success {
		return false
	}
	if f.Provider != "" && a.Provider != f.Provider {
		return false
	}
	if f.UserID != nil && (a.UserID == nil || *a.UserID != *f.UserID) {
		return false
	}
	if f.DeviceID != "" && deref(a.DeviceID) != f.DeviceID {
		return false
	}
	if f.IP != "" && deref(a.IP) != f.IP {
		return false
	}
	if f.ErrorCode != "" && deref(a.ErrorCode) != f.ErrorCode {
		return false
	}
	if f.From != nil && a.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && a.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// Grouping describes one aggregation column for GroupCount.
type Grouping struct {
	Column string
	// NullKey labels the NULL bucket. SkipNulls drops it instead.
	NullKey   string
	SkipNulls bool
	Limit     int
}

const (
	columnProvider  = "provider"
	columnErrorCode = "error_code"
	columnIP        = "ip"
	columnDeviceID  = "device_id"
)

func (a *LoginAttempt) column(name string) *string {
	switch name {
	case columnProvider:
		if a.Provider == "" {
			return nil
		}
		p := string(a.Provider)
		return &p
	case columnErrorCode:
		return a.ErrorCode
	case columnIP:
		return a.IP
	case columnDeviceID:
		return a.DeviceID
	default:
		return nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
