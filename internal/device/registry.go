package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Registry tracks the trust state of every (user, device) pair.
type Registry struct {
	log  *zap.Logger
	repo Repository
	now  func() time.Time
}

func NewRegistry(log *zap.Logger, repo Repository) *Registry {
	return &Registry{log: log, repo: repo, now: time.Now}
}

func (r *Registry) IsBlocked(ctx context.Context, userID int64, deviceID string) (bool, error) {
	device, err := r.repo.Find(ctx, userID, NormalizeID(deviceID))
	if errors.Is(err, ErrDeviceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find device: %w", err)
	}
	return device.Blocked(), nil
}

// UpsertLogin records a successful login. Blank ip or user agent values
// leave the stored ones untouched.
func (r *Registry) UpsertLogin(ctx context.Context, userID int64, deviceID, ip, userAgent string) (*Device, error) {
	now := r.now()
	ipValue := cleanMeta(ip, MaxIPLength)
	uaValue := cleanMeta(userAgent, MaxUserAgentLength)

	return r.upsert(ctx, userID, NormalizeID(deviceID), func(d *Device) {
		d.LastLoginAt = &now
		if ipValue != nil {
			d.LastIP = ipValue
		}
		if uaValue != nil {
			d.LastUserAgent = uaValue
		}
	})
}

// Block marks the device BLOCKED, creating its record if it was never seen.
func (r *Registry) Block(ctx context.Context, userID int64, deviceID, reason string) (*Device, error) {
	now := r.now()
	reasonValue := cleanMeta(reason, 500)

	device, err := r.upsert(ctx, userID, NormalizeID(deviceID), func(d *Device) {
		d.Status = StatusBlocked
		d.BlockedReason = reasonValue
		d.BlockedAt = &now
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("device blocked",
		zap.Int64("user_id", userID),
		zap.String("device_id", device.DeviceID),
		zap.String("reason", strings.TrimSpace(reason)))
	return device, nil
}

func (r *Registry) Unblock(ctx context.Context, userID int64, deviceID string) (*Device, error) {
	return r.upsert(ctx, userID, NormalizeID(deviceID), func(d *Device) {
		d.Status = StatusActive
		d.BlockedReason = nil
		d.BlockedAt = nil
	})
}

func (r *Registry) List(ctx context.Context, userID int64) ([]Device, error) {
	return r.repo.ListByUser(ctx, userID)
}

func (r *Registry) CountByUsers(ctx context.Context, userIDs []int64) (map[int64]int64, error) {
	return r.repo.CountByUsers(ctx, userIDs)
}

// upsert updates the locked row, inserting it in ACTIVE state when absent.
// A lost insert race is retried once as an update.
func (r *Registry) upsert(ctx context.Context, userID int64, deviceID string, mutate func(*Device)) (*Device, error) {
	device, err := r.repo.UpdateLocked(ctx, userID, deviceID, mutate)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return nil, fmt.Errorf("update device: %w", err)
	}

	fresh := &Device{UserID: userID, DeviceID: deviceID, Status: StatusActive}
	mutate(fresh)
	inserted, err := r.repo.Insert(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	if inserted {
		return fresh, nil
	}

	r.log.Debug("device insert raced, retrying as update",
		zap.Int64("user_id", userID),
		zap.String("device_id", deviceID))
	device, err = r.repo.UpdateLocked(ctx, userID, deviceID, mutate)
	if err != nil {
		return nil, fmt.Errorf("update device after conflict: %w", err)
	}
	return device, nil
}
