package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/elskow/chef-identity/internal/pagination"
)

// InMemoryRepository is a slice-backed Repository for tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	attempts []LoginAttempt
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) Create(_ context.Context, attempt *LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt.ID = int64(len(r.attempts) + 1)
	r.attempts = append(r.attempts, *attempt)
	return nil
}

func (r *InMemoryRepository) FindByID(_ context.Context, id int64) (*LoginAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 1 || id > int64(len(r.attempts)) {
		return nil, ErrAttemptNotFound
	}
	attempt := r.attempts[id-1]
	return &attempt, nil
}

func (r *InMemoryRepository) Search(_ context.Context, filter Filter, page pagination.Request) ([]LoginAttempt, int64, error) {
	matched := r.matching(filter)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

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

func (r *InMemoryRepository) Count(_ context.Context, filter Filter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r *InMemoryRepository) GroupCount(_ context.Context, filter Filter, grouping Grouping) ([]KeyCount, error) {
	counts := make(map[string]int64)
	matched := r.matching(filter)
	for i := range matched {
		value := deref(matched[i].column(grouping.Column))
		if value == "" {
			if grouping.SkipNulls {
				continue
			}
			value = grouping.NullKey
		}
		counts[value]++
	}

	out := make([]KeyCount, 0, len(counts))
	for key, count := range counts {
		out = append(out, KeyCount{Key: key, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if grouping.Limit > 0 && len(out) > grouping.Limit {
		out = out[:grouping.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) matching(filter Filter) []LoginAttempt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []LoginAttempt
	for i := range r.attempts {
		if filter.matches(&r.attempts[i]) {
			out = append(out, r.attempts[i])
		}
	}
	return out
}
