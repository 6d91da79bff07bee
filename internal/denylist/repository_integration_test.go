//go:build integration

package denylist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elskow/chef-identity/internal/database/dbtest"
)

func TestRepository_Postgres(t *testing.T) {
	db := dbtest.Open(t, "jwt_denylist")
	repo := NewRepository(db)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, &Entry{TokenKey: "jti-1", RevokedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(ctx, &Entry{TokenKey: "jti-1", RevokedAt: now, ExpiresAt: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = repo.Insert(ctx, &Entry{TokenKey: HashKey("old"), RevokedAt: now, ExpiresAt: now.Add(-time.Minute)})
	require.NoError(t, err)

	found, err := repo.ExistsAny(ctx, "nope", "jti-1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsAny(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	found, err = repo.ExistsAny(ctx, HashKey("old"))
	require.NoError(t, err)
	assert.False(t, found)
}
