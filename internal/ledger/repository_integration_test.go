//go:build integration

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elskow/chef-identity/internal/database/dbtest"
	"github.com/elskow/chef-identity/internal/pagination"
	"github.com/elskow/chef-identity/internal/provider"
)

func strp(s string) *string { return &s }

func TestRepository_Postgres(t *testing.T) {
	db := dbtest.Open(t, "login_attempts")
	repo := NewRepository(db)
	ctx := context.Background()

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := []LoginAttempt{
		{Success: true, Provider: provider.Local, UserID: int64p(1), IP: strp("10.0.0.1"), CreatedAt: at.Add(-4 * time.Hour)},
		{Success: false, Provider: provider.Local, UserID: int64p(1), IP: strp("10.0.0.1"), ErrorCode: strp(CodeBadCredentials), CreatedAt: at.Add(-3 * time.Hour)},
		{Success: false, Provider: provider.Local, IP: strp("10.0.0.2"), ErrorCode: strp(CodeBadCredentials), CreatedAt: at.Add(-2 * time.Hour)},
		{Success: false, Provider: provider.Kakao, IP: strp(""), CreatedAt: at.Add(-1 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, repo.Create(ctx, &rows[i]))
	}

	t.Run("search newest first with total", func(t *testing.T) {
		failed := false
		got, total, err := repo.Search(ctx, Filter{Success: &failed}, pagination.Request{Page: 0, Size: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, got, 2)
		assert.Equal(t, rows[3].ID, got[0].ID)
		assert.Equal(t, rows[2].ID, got[1].ID)
	})

	t.Run("find missing", func(t *testing.T) {
		_, err := repo.FindByID(ctx, 999)
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})

	t.Run("group with null bucket", func(t *testing.T) {
		failed := false
		got, err := repo.GroupCount(ctx, Filter{Success: &failed}, Grouping{Column: columnErrorCode, NullKey: noErrorCodeKey})
		require.NoError(t, err)
		assert.Equal(t, []KeyCount{
			{Key: CodeBadCredentials, Count: 2},
			{Key: noErrorCodeKey, Count: 1},
		}, got)
	})

	t.Run("group skipping blanks", func(t *testing.T) {
		got, err := repo.GroupCount(ctx, Filter{}, Grouping{Column: columnIP, SkipNulls: true, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []KeyCount{{Key: "10.0.0.1", Count: 2}}, got)
	})

	t.Run("ties ordered by key", func(t *testing.T) {
		got, err := repo.GroupCount(ctx, Filter{ErrorCode: CodeBadCredentials}, Grouping{Column: columnIP, SkipNulls: true})
		require.NoError(t, err)
		assert.Equal(t, []KeyCount{{Key: "10.0.0.1", Count: 1}, {Key: "10.0.0.2", Count: 1}}, got)
	})

	t.Run("unsupported column", func(t *testing.T) {
		_, err := repo.GroupCount(ctx, Filter{}, Grouping{Column: "user_agent"})
		assert.Error(t, err)
	})
}
