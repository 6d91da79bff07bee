package user

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/elskow/chef-identity/internal/pagination"
	"github.com/elskow/chef-identity/internal/provider"
)

// InMemoryRepository is a map-backed Repository. Transactions are
// serialized by txMu, which stands in for the identity row lock.
type InMemoryRepository struct {
	txMu       sync.Mutex
	mu         sync.RWMutex
	accounts   map[int64]*Account
	identities map[identityKey]*Identity
	nextID     int64
	nextIdent  int64
}

type identityKey struct {
	provider       provider.Provider
	providerUserID string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		accounts:   make(map[int64]*Account),
		identities: make(map[identityKey]*Identity),
	}
}

func (r *InMemoryRepository) Transaction(_ context.Context, fn func(tx Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

func (r *InMemoryRepository) Create(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.Email != nil {
		for _, existing := range r.accounts {
			if existing.Email != nil && *existing.Email == *account.Email {
				return ErrEmailTaken
			}
		}
	}
	r.nextID++
	account.ID = r.nextID
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	stored := *account
	r.accounts[account.ID] = &stored
	return nil
}

func (r *InMemoryRepository) FindByID(_ context.Context, id int64) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *InMemoryRepository) FindByEmail(_ context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if account.Email != nil && *account.Email == email {
			clone := *account
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *InMemoryRepository) LookupIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	account, err := r.FindByEmail(ctx, email)
	if err != nil {
		return 0, false, nil
	}
	return account.ID, true, nil
}

func (r *InMemoryRepository) Update(_ context.Context, id int64, fn func(*Account) error) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	working := *account
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	*account = working
	clone := working
	return &clone, nil
}

func (r *InMemoryRepository) List(_ context.Context, filter Filter, page pagination.Request, now time.Time) ([]Account, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Account
	for _, account := range r.accounts {
		if filter.matches(account, r.providersLocked(account.ID), now) {
			matched = append(matched, *account)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit()
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *InMemoryRepository) FindIdentity(_ context.Context, p provider.Provider, providerUserID string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.identities[identityKey{p, providerUserID}]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	clone := *identity
	return &clone, nil
}

func (r *InMemoryRepository) CreateIdentity(_ context.Context, identity *Identity) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey{identity.Provider, identity.ProviderUserID}
	if _, exists := r.identities[key]; exists {
		return false, nil
	}
	r.nextIdent++
	identity.ID = r.nextIdent
	now := time.Now()
	identity.CreatedAt, identity.UpdatedAt = now, now
	stored := *identity
	r.identities[key] = &stored
	return true, nil
}

func (r *InMemoryRepository) ListIdentities(_ context.Context, userID int64) ([]Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Identity
	for _, identity := range r.identities {
		if identity.UserID == userID {
			out = append(out, *identity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) ProvidersByUsers(_ context.Context, userIDs []int64) (map[int64][]provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64][]provider.Provider, len(userIDs))
	for _, id := range userIDs {
		if providers := r.providersLocked(id); len(providers) > 0 {
			out[id] = providers
		}
	}
	return out, nil
}

func (r *InMemoryRepository) providersLocked(userID int64) []provider.Provider {
	seen := make(map[provider.Provider]bool)
	var out []provider.Provider
	for _, identity := range r.identities {
		if identity.UserID == userID && !seen[identity.Provider] {
			seen[identity.Provider] = true
			out = append(out, identity.Provider)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
