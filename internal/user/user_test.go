package user

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	return NewService(zap.NewNop(), repo)
}

func newTestOAuthService(t *testing.T, repo Repository) *OAuthService {
	t.Helper()
	return NewOAuthService(zap.NewNop(), repo)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func kakaoAttrs(id float64, email, nickname string) map[string]any {
	account := map[string]any{
		"profile": map[string]any{"nickname": nickname},
	}
	if email != "" {
		account["email"] = email
	}
	return map[string]any{"id": id, "kakao_account": account}
}
