package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"

	"github.com/elskow/chef-identity/internal/provider"
)

// Data is the payload kept for a live session in the session store.
type Data struct {
	UserID    int64             `json:"userId"`
	DeviceID  string            `json:"deviceId"`
	Provider  provider.Provider `json:"provider"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Store is the physical session storage. Deleting an entry ends the session
// for the transport layer; the binding table decides whether it is valid.
type Store interface {
	Create(ctx context.Context, data Data) (string, error)
	Get(ctx context.Context, sessionID string) (*Data, bool, error)
	DeleteByID(ctx context.Context, sessionID string) error
}

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, data Data) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	id := ksuid.New().String()
	if err := s.client.Set(ctx, s.key(id), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Data, bool, error) {
	payload, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}
	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	return &data, true, nil
}

func (s *RedisStore) DeleteByID(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Data
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Data)}
}

func (s *MemoryStore) Create(_ context.Context, data Data) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ksuid.New().String()
	s.sessions[id] = data
	return id, nil
}

// Put stores data under a caller-chosen id.
func (s *MemoryStore) Put(sessionID string, data Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = data
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Data, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	return &data, true, nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
