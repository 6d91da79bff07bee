package session

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/device"
)

type testEnv struct {
	repo     *InMemoryRepository
	store    *MemoryStore
	service  *Service
	registry *device.Registry
	gate     *Gate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	repo := NewInMemoryRepository()
	store := NewMemoryStore()
	service := NewService(log, repo, store)
	registry := device.NewRegistry(log, device.NewInMemoryRepository())
	return &testEnv{
		repo:     repo,
		store:    store,
		service:  service,
		registry: registry,
		gate:     NewGate(log, service, store, registry, "SESSION"),
	}
}

func steppingClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}
