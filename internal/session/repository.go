package session

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrBindingNotFound = errors.New("session binding not found")

type Repository interface {
	// Upsert writes the binding keyed by session id, clearing any revocation.
	Upsert(ctx context.Context, binding *Binding) error
	FindBySessionID(ctx context.Context, sessionID string) (*Binding, error)
	// Touch and Revoke only affect active bindings and report whether a row
	// changed.
	Touch(ctx context.Context, sessionID string, at time.Time) (bool, error)
	Revoke(ctx context.Context, sessionID, reason string, at time.Time) (bool, error)
	RevokeAll(ctx context.Context, userID int64, deviceID, reason string, at time.Time) (int64, error)
	ActiveSessionIDs(ctx context.Context, userID int64, deviceID string) ([]string, error)
	ListByUser(ctx context.Context, userID int64, filter ListFilter) ([]Binding, error)
	CountActiveByUsers(ctx context.Context, userIDs []int64) (map[int64]int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, binding *Binding) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"user_id":          binding.UserID,
				"device_id":        binding.DeviceID,
				"provider":         binding.Provider,
				"last_accessed_at": binding.LastAccessedAt,
				"revoked_at":       nil,
				"revoked_reason":   nil,
				"updated_at":       binding.LastAccessedAt,
			}),
		}).
		Create(binding).Error
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*Binding, error) {
	var binding Binding
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&binding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBindingNotFound
		}
		return nil, err
	}
	return &binding, nil
}

func (r *repository) Touch(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Binding{}).
		Where("session_id = ? AND revoked_at IS NULL", sessionID).
		Update("last_accessed_at", at)
	return result.RowsAffected > 0, result.Error
}

func (r *repository) Revoke(ctx context.Context, sessionID, reason string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Binding{}).
		Where("session_id = ? AND revoked_at IS NULL", sessionID).
		Updates(map[string]any{"revoked_at": at, "revoked_reason": reason})
	return result.RowsAffected > 0, result.Error
}

func (r *repository) RevokeAll(ctx context.Context, userID int64, deviceID, reason string, at time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&Binding{}).
		Where("user_id = ? AND revoked_at IS NULL", userID)
	if deviceID != "" {
		query = query.Where("device_id = ?", deviceID)
	}
	result := query.Updates(map[string]any{"revoked_at": at, "revoked_reason": reason})
	return result.RowsAffected, result.Error
}

func (r *repository) ActiveSessionIDs(ctx context.Context, userID int64, deviceID string) ([]string, error) {
	query := r.db.WithContext(ctx).
		Model(&Binding{}).
		Where("user_id = ? AND revoked_at IS NULL", userID)
	if deviceID != "" {
		query = query.Where("device_id = ?", deviceID)
	}
	var ids []string
	err := query.Order("id ASC").Pluck("session_id", &ids).Error
	return ids, err
}

func (r *repository) ListByUser(ctx context.Context, userID int64, filter ListFilter) ([]Binding, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.DeviceID != "" {
		query = query.Where("device_id = ?", filter.DeviceID)
	}
	if filter.ActiveOnly {
		query = query.Where("revoked_at IS NULL")
	}
	var bindings []Binding
	err := query.Order("last_accessed_at DESC, id DESC").Find(&bindings).Error
	return bindings, err
}

func (r *repository) CountActiveByUsers(ctx context.Context, userIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		UserID int64
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&Binding{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ? AND revoked_at IS NULL", userIDs).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UserID] = row.Count
	}
	return out, nil
}
