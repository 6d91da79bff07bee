package device

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDeviceNotFound = errors.New("device not found")

type Repository interface {
	Find(ctx context.Context, userID int64, deviceID string) (*Device, error)
	// Insert reports false when the (user, device) pair already exists.
	Insert(ctx context.Context, device *Device) (bool, error)
	// UpdateLocked loads the row FOR UPDATE, applies fn and saves it.
	UpdateLocked(ctx context.Context, userID int64, deviceID string, fn func(*Device)) (*Device, error)
	ListByUser(ctx context.Context, userID int64) ([]Device, error)
	CountByUsers(ctx context.Context, userIDs []int64) (map[int64]int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Find(ctx context.Context, userID int64, deviceID string) (*Device, error) {
	var device Device
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (r *repository) Insert(ctx context.Context, device *Device) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "device_id"}},
			DoNothing: true,
		}).
		Create(device)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateLocked(ctx context.Context, userID int64, deviceID string, fn func(*Device)) (*Device, error) {
	var device Device
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND device_id = ?", userID, deviceID).
			First(&device).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDeviceNotFound
			}
			return err
		}
		fn(&device)
		return tx.Save(&device).Error
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int64) ([]Device, error) {
	var devices []Device
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_login_at DESC NULLS LAST, id DESC").
		Find(&devices).Error
	return devices, err
}

func (r *repository) CountByUsers(ctx context.Context, userIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		UserID int64
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&Device{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", userIDs).
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
