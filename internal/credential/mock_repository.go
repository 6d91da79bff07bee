package credential

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is a Repository backed by a map. A single mutex plays
// the role of the row lock.
type InMemoryRepository struct {
	mu          sync.Mutex
	credentials map[int64]*Credential
	nextID      int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{credentials: make(map[int64]*Credential)}
}

func (r *InMemoryRepository) Create(_ context.Context, credential *Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.credentials[credential.UserID]; exists {
		return ErrCredentialExists
	}
	r.nextID++
	credential.ID = r.nextID
	now := time.Now()
	credential.CreatedAt, credential.UpdatedAt = now, now
	stored := *credential
	r.credentials[credential.UserID] = &stored
	return nil
}

func (r *InMemoryRepository) FindByUserID(_ context.Context, userID int64) (*Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	credential, exists := r.credentials[userID]
	if !exists {
		return nil, ErrCredentialNotFound
	}
	clone := *credential
	return &clone, nil
}

func (r *InMemoryRepository) UpdateLocked(_ context.Context, userID int64, fn func(*Credential) error) (*Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	credential, exists := r.credentials[userID]
	if !exists {
		return nil, ErrCredentialNotFound
	}
	working := *credential
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	*credential = working
	clone := working
	return &clone, nil
}
