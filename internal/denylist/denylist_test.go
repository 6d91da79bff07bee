package denylist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
)

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *InMemoryRepository) {
	t.Helper()
	repo := NewInMemoryRepository()
	svc := NewService(&config.DenylistConfig{}, zap.NewNop(), repo)
	svc.now = func() time.Time { return now }
	return svc, repo
}

func TestHashKey(t *testing.T) {
	// sha256("abc")
	assert.Equal(t,
		"HASH:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		HashKey("abc"))
}

func TestService_DualKeyLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Revoke(ctx, "token-one", "abc", nil, "logout"))
	require.NoError(t, svc.Revoke(ctx, "token-two", "", nil, "logout"))

	tests := []struct {
		name  string
		jti   string
		token string
		want  bool
	}{
		{name: "jti match", jti: "abc", token: "other", want: true},
		{name: "hash path without jti", jti: "", token: "token-two", want: true},
		{name: "synthetic key as jti", jti: HashKey("token-two"), token: "token-two", want: true},
		{name: "unrelated jti with revoked raw token", jti: "zzz", token: "token-two", want: true},
		{name: "jti revoked token hash not stored", jti: "", token: "token-one", want: false},
		{name: "unknown", jti: "nope", token: "fresh", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsRevoked(ctx, tt.jti, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Revoke_DefaultsAndIdempotence(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Revoke(ctx, "t", "jti-1", nil, "first"))
	exp := now.Add(10 * time.Hour)
	require.NoError(t, svc.Revoke(ctx, "t", "jti-1", &exp, "second"))

	entry, ok := repo.Get("jti-1")
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), entry.ExpiresAt)
	assert.Equal(t, now, entry.RevokedAt)
	require.NotNil(t, entry.Reason)
	assert.Equal(t, "first", *entry.Reason)
}

func TestService_Revoke_LongJTI(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	long := strings.Repeat("j", 300)

	require.NoError(t, svc.Revoke(ctx, "tok", long, nil, "logout"))

	_, ok := repo.Get(HashKey(long))
	assert.True(t, ok)

	tests := []struct {
		name  string
		jti   string
		token string
		want  bool
	}{
		{name: "same jti and token", jti: long, token: "tok", want: true},
		{name: "same jti other token", jti: long, token: "other", want: true},
		{name: "jti sharing the stored prefix", jti: long[:maxKeyLength], token: "other", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsRevoked(ctx, tt.jti, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Revoke_MultibyteReason(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Revoke(ctx, "t", "jti-r", nil, strings.Repeat("x", 99)+"차단"))

	entry, ok := repo.Get("jti-r")
	require.True(t, ok)
	require.NotNil(t, entry.Reason)
	assert.True(t, utf8.ValidString(*entry.Reason))
	assert.Equal(t, strings.Repeat("x", 99), *entry.Reason)
}

func TestService_CleanupExpired(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)
	require.NoError(t, svc.Revoke(ctx, "a", "expired", &past, ""))
	require.NoError(t, svc.Revoke(ctx, "b", "edge", &now, ""))
	require.NoError(t, svc.Revoke(ctx, "c", "live", &future, ""))

	n, err := svc.CleanupExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok := repo.Get("expired")
	assert.False(t, ok)
	_, ok = repo.Get("edge")
	assert.True(t, ok)
	_, ok = repo.Get("live")
	assert.True(t, ok)
}

type stubDecoder struct {
	token *Token
	err   error
}

func (d stubDecoder) Decode(context.Context, string) (*Token, error) {
	return d.token, d.err
}

func TestRevocationAwareDecoder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Revoke(ctx, "raw-revoked", "revoked-id", nil, ""))

	decodeErr := errors.New("bad signature")

	tests := []struct {
		name    string
		decoder stubDecoder
		raw     string
		wantErr error
	}{
		{name: "valid", decoder: stubDecoder{token: &Token{ID: "ok"}}, raw: "raw-ok"},
		{name: "revoked by jti", decoder: stubDecoder{token: &Token{ID: "revoked-id"}}, raw: "raw-x", wantErr: ErrTokenRevoked},
		{name: "decode failure wins", decoder: stubDecoder{err: decodeErr}, raw: "raw-revoked", wantErr: decodeErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := NewRevocationAwareDecoder(tt.decoder, svc).Decode(ctx, tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, token)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.decoder.token, token)
		})
	}
}

func TestCleanupJob_Run(t *testing.T) {
	svc, repo := newTestService(t)
	past := now.Add(-time.Hour)
	require.NoError(t, svc.Revoke(context.Background(), "a", "old", &past, ""))

	job := NewCleanupJob(svc, zap.NewNop(), "")
	assert.Equal(t, defaultCleanupSchedule, job.schedule)
	job.Run()

	_, ok := repo.Get("old")
	assert.False(t, ok)
}

func TestCleanupJob_StartRejectsBadSchedule(t *testing.T) {
	svc, _ := newTestService(t)
	job := NewCleanupJob(svc, zap.NewNop(), "not a schedule")
	assert.Error(t, job.Start())
}
