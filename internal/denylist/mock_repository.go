package denylist

import (
	"context"
	"sync"
	"time"
)

type InMemoryRepository struct {
	mu      sync.Mutex
	entries map[string]Entry
	nextID  int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[string]Entry)}
}

func (r *InMemoryRepository) ExistsAny(_ context.Context, keys ...string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range keys {
		if _, ok := r.entries[k]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) Insert(_ context.Context, entry *Entry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.TokenKey]; ok {
		return false, nil
	}
	r.nextID++
	entry.ID = r.nextID
	r.entries[entry.TokenKey] = *entry
	return true, nil
}

func (r *InMemoryRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, e := range r.entries {
		if e.ExpiresAt.Before(before) {
			delete(r.entries, k)
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) Get(key string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return e, ok
}
