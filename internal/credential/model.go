package credential

import "time"

// Credential holds the local password of a user and its failure counters.
type Credential struct {
	ID                int64  `gorm:"primaryKey"`
	UserID            int64  `gorm:"uniqueIndex;not null"`
	PasswordHash      string `gorm:"not null"`
	PasswordUpdatedAt time.Time
	FailedLoginCount  int `gorm:"not null;default:0"`
	LastFailedAt      *time.Time
	LockUntil         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Credential) TableName() string {
	return "local_credentials"
}

// IsLocked reports whether LockUntil lies after now.
func (c *Credential) IsLocked(now time.Time) bool {
	return c.LockUntil != nil && c.LockUntil.After(now)
}
