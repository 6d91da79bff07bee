package credential

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_RecordFailure_Threshold(t *testing.T) {
	policy, repo := newTestPolicy(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 1; i <= 4; i++ {
		result, err := policy.RecordFailure(ctx, "a@b.com", now)
		require.NoError(t, err)
		assert.Equal(t, BadCredentials, result, "attempt %d", i)

		c, err := repo.FindByUserID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, i, c.FailedLoginCount)
		assert.Nil(t, c.LockUntil)
	}

	result, err := policy.RecordFailure(ctx, "a@b.com", now)
	require.NoError(t, err)
	assert.Equal(t, Locked, result)

	c, err := repo.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.FailedLoginCount)
	require.NotNil(t, c.LockUntil)
	assert.Equal(t, now.Add(5*time.Minute), *c.LockUntil)
	assert.Equal(t, now, *c.LastFailedAt)
}

func TestPolicy_RecordFailure_SlidingExtension(t *testing.T) {
	policy, repo := newTestPolicy(t)
	ctx := context.Background()
	lockedAt := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := policy.RecordFailure(ctx, "a@b.com", lockedAt)
		require.NoError(t, err)
	}

	retryAt := lockedAt.Add(30 * time.Second)
	result, err := policy.RecordFailure(ctx, "a@b.com", retryAt)
	require.NoError(t, err)
	assert.Equal(t, Locked, result)

	c, err := repo.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.FailedLoginCount)
	require.NotNil(t, c.LockUntil)
	assert.Equal(t, retryAt.Add(time.Minute), *c.LockUntil)
	assert.Equal(t, retryAt, *c.LastFailedAt)
}

func TestPolicy_RecordFailure_AfterLockExpires(t *testing.T) {
	policy, repo := newTestPolicy(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := policy.RecordFailure(ctx, "a@b.com", start)
		require.NoError(t, err)
	}

	later := start.Add(10 * time.Minute)
	result, err := policy.RecordFailure(ctx, "a@b.com", later)
	require.NoError(t, err)
	assert.Equal(t, BadCredentials, result)

	c, err := repo.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.FailedLoginCount)
}

func TestPolicy_RecordFailure_NotFound(t *testing.T) {
	policy, _ := newTestPolicy(t)

	tests := []struct {
		name  string
		email string
	}{
		{name: "unknown email", email: "nobody@b.com"},
		{name: "account without local credential", email: "orphan@b.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := policy.RecordFailure(context.Background(), tt.email, time.Now())
			require.NoError(t, err)
			assert.Equal(t, NotFound, result)
		})
	}
}

func TestPolicy_RecordSuccess(t *testing.T) {
	policy, repo := newTestPolicy(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, err := policy.RecordFailure(ctx, "a@b.com", now)
		require.NoError(t, err)
	}
	require.NoError(t, policy.RecordSuccess(ctx, 1, now))

	c, err := repo.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.FailedLoginCount)
	assert.Nil(t, c.LockUntil)
	assert.Nil(t, c.LastFailedAt)
	assert.False(t, c.IsLocked(now))

	assert.NoError(t, policy.RecordSuccess(ctx, 99, now))
}

func TestPolicy_RecordFailure_Concurrent(t *testing.T) {
	policy, repo := newTestPolicy(t)
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	results := make(chan FailureResult, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := policy.RecordFailure(ctx, "a@b.com", now)
			assert.NoError(t, err)
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	locked := 0
	for r := range results {
		if r == Locked {
			locked++
		}
	}
	assert.Equal(t, 1, locked)

	c, err := repo.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, c.IsLocked(now))
}
