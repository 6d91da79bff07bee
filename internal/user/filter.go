package user

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/elskow/chef-identity/internal/provider"
)

// Filter narrows an account listing. Zero values are ignored.
type Filter struct {
	// Query matches a numeric user id exactly, or email/nickname by substring.
	Query       string
	Email       string
	Nickname    string
	Provider    provider.Provider
	Suspended   *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

func (f Filter) apply(db *gorm.DB, now time.Time) *gorm.DB {
	if q := strings.TrimSpace(f.Query); q != "" {
		if id, err := strconv.ParseInt(q, 10, 64); err == nil {
			db = db.Where("user_accounts.id = ?", id)
		} else {
			like := "%" + strings.ToLower(q) + "%"
			db = db.Where("(LOWER(user_accounts.email) LIKE ? OR LOWER(user_accounts.nickname) LIKE ?)", like, like)
		}
	}
	if f.Email != "" {
		db = db.Where("LOWER(user_accounts.email) LIKE ?", "%"+strings.ToLower(f.Email)+"%")
	}
	if f.Nickname != "" {
		db = db.Where("LOWER(user_accounts.nickname) LIKE ?", "%"+strings.ToLower(f.Nickname)+"%")
	}
	if f.Provider != "" {
		db = db.Where(
			"EXISTS (SELECT 1 FROM oauth_identities oi WHERE oi.user_id = user_accounts.id AND oi.provider = ?)",
			f.Provider,
		)
	}
	if f.Suspended != nil {
		active := "(user_accounts.suspended_at IS NOT NULL AND (user_accounts.suspended_until IS NULL OR user_accounts.suspended_until > ?))"
		if *f.Suspended {
			db = db.Where(active, now)
		} else {
			db = db.Where("NOT "+active, now)
		}
	}
	if f.CreatedFrom != nil {
		db = db.Where("user_accounts.created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		db = db.Where("user_accounts.created_at <= ?", *f.CreatedTo)
	}
	return db
}

func (f Filter) matches(a *Account, providers []provider.Provider, now time.Time) bool {
	if q := strings.TrimSpace(f.Query); q != "" {
		if id, err := strconv.ParseInt(q, 10, 64); err == nil {
			if a.ID != id {
				return false
			}
		} else if !containsFold(deref(a.Email), q) && !containsFold(deref(a.Nickname), q) {
			return false
		}
	}
	if f.Email != "" && !containsFold(deref(a.Email), f.Email) {
		return false
	}
	if f.Nickname != "" && !containsFold(deref(a.Nickname), f.Nickname) {
		return false
	}
	if f.Provider != "" {
		found := false
		for _, p := range providers {
			if p == f.Provider {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Suspended != nil && a.IsSuspended(now) != *f.Suspended {
		return false
	}
	if f.CreatedFrom != nil && a.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && a.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
