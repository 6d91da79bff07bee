package device

import (
	"context"
	"sort"
	"sync"
	"time"
)

type deviceKey struct {
	userID   int64
	deviceID string
}

// InMemoryRepository is a map-backed Repository for tests.
type InMemoryRepository struct {
	mu      sync.Mutex
	devices map[deviceKey]*Device
	nextID  int64

	// beforeInsert lets tests interleave a competing insert.
	beforeInsert func()
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{devices: make(map[deviceKey]*Device)}
}

func (r *InMemoryRepository) Find(_ context.Context, userID int64, deviceID string) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceKey{userID, deviceID}]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	clone := *device
	return &clone, nil
}

func (r *InMemoryRepository) Insert(_ context.Context, device *Device) (bool, error) {
	if hook := r.beforeInsert; hook != nil {
		r.beforeInsert = nil
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := deviceKey{device.UserID, device.DeviceID}
	if _, exists := r.devices[key]; exists {
		return false, nil
	}
	r.nextID++
	device.ID = r.nextID
	now := time.Now()
	device.CreatedAt, device.UpdatedAt = now, now
	stored := *device
	r.devices[key] = &stored
	return true, nil
}

func (r *InMemoryRepository) UpdateLocked(_ context.Context, userID int64, deviceID string, fn func(*Device)) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceKey{userID, deviceID}]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	fn(device)
	device.UpdatedAt = time.Now()
	clone := *device
	return &clone, nil
}

func (r *InMemoryRepository) ListByUser(_ context.Context, userID int64) ([]Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Device
	for key, device := range r.devices {
		if key.userID == userID {
			out = append(out, *device)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) CountByUsers(_ context.Context, userIDs []int64) (map[int64]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	out := make(map[int64]int64, len(userIDs))
	for key := range r.devices {
		if wanted[key.userID] {
			out[key.userID]++
		}
	}
	return out, nil
}
