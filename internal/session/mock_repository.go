package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is a map-backed Repository for tests.
type InMemoryRepository struct {
	mu       sync.Mutex
	bindings map[string]*Binding
	nextID   int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{bindings: make(map[string]*Binding)}
}

func (r *InMemoryRepository) Upsert(_ context.Context, binding *Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bindings[binding.SessionID]; ok {
		existing.UserID = binding.UserID
		existing.DeviceID = binding.DeviceID
		existing.Provider = binding.Provider
		existing.LastAccessedAt = binding.LastAccessedAt
		existing.RevokedAt = nil
		existing.RevokedReason = nil
		existing.UpdatedAt = binding.LastAccessedAt
		binding.ID = existing.ID
		return nil
	}
	r.nextID++
	binding.ID = r.nextID
	binding.CreatedAt = binding.LastAccessedAt
	binding.UpdatedAt = binding.LastAccessedAt
	stored := *binding
	r.bindings[binding.SessionID] = &stored
	return nil
}

func (r *InMemoryRepository) FindBySessionID(_ context.Context, sessionID string) (*Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.bindings[sessionID]
	if !ok {
		return nil, ErrBindingNotFound
	}
	clone := *binding
	return &clone, nil
}

func (r *InMemoryRepository) Touch(_ context.Context, sessionID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.bindings[sessionID]
	if !ok || !binding.Active() {
		return false, nil
	}
	binding.LastAccessedAt = at
	return true, nil
}

func (r *InMemoryRepository) Revoke(_ context.Context, sessionID, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.bindings[sessionID]
	if !ok || !binding.Active() {
		return false, nil
	}
	revokeLocked(binding, reason, at)
	return true, nil
}

func (r *InMemoryRepository) RevokeAll(_ context.Context, userID int64, deviceID, reason string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, binding := range r.bindings {
		if binding.UserID == userID && binding.Active() && (deviceID == "" || binding.DeviceID == deviceID) {
			revokeLocked(binding, reason, at)
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) ActiveSessionIDs(_ context.Context, userID int64, deviceID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Binding
	for _, binding := range r.bindings {
		if binding.UserID == userID && binding.Active() && (deviceID == "" || binding.DeviceID == deviceID) {
			matched = append(matched, binding)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	ids := make([]string, len(matched))
	for i, binding := range matched {
		ids[i] = binding.SessionID
	}
	return ids, nil
}

func (r *InMemoryRepository) ListByUser(_ context.Context, userID int64, filter ListFilter) ([]Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Binding
	for _, binding := range r.bindings {
		if binding.UserID != userID {
			continue
		}
		if filter.DeviceID != "" && binding.DeviceID != filter.DeviceID {
			continue
		}
		if filter.ActiveOnly && !binding.Active() {
			continue
		}
		out = append(out, *binding)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAccessedAt.Equal(out[j].LastAccessedAt) {
			return out[i].LastAccessedAt.After(out[j].LastAccessedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *InMemoryRepository) CountActiveByUsers(_ context.Context, userIDs []int64) (map[int64]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	out := make(map[int64]int64, len(userIDs))
	for _, binding := range r.bindings {
		if wanted[binding.UserID] && binding.Active() {
			out[binding.UserID]++
		}
	}
	return out, nil
}

func revokeLocked(binding *Binding, reason string, at time.Time) {
	revokedAt := at
	revokedReason := reason
	binding.RevokedAt = &revokedAt
	binding.RevokedReason = &revokedReason
}
