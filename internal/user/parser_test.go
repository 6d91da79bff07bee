package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributeExtraction(t *testing.T) {
	kakao := map[string]any{
		"id": float64(4012345678),
		"kakao_account": map[string]any{
			"email": "kakao@example.com",
			"profile": map[string]any{
				"nickname":            "kakao-nick",
				"thumbnail_image_url": "https://k.example.com/thumb.png",
			},
		},
	}
	naver := map[string]any{
		"resultcode": "00",
		"response": map[string]any{
			"id":            "naver-123",
			"email":         "naver@example.com",
			"nickname":      "naver-nick",
			"profile_image": "https://n.example.com/p.png",
		},
	}
	google := map[string]any{
		"sub":     "google-sub",
		"email":   "google@example.com",
		"name":    "Google User",
		"picture": "https://g.example.com/p.png",
	}
	generic := map[string]any{
		"id":      42,
		"email":   "gh@example.com",
		"name":    "octo",
		"picture": "https://gh.example.com/p.png",
	}

	tests := []struct {
		name         string
		registration string
		attrs        map[string]any
		wantID       string
		wantEmail    string
		wantNickname string
		wantAvatar   string
		wantThumb    string
	}{
		{
			name:         "kakao numeric id and thumbnail fallback",
			registration: "kakao",
			attrs:        kakao,
			wantID:       "4012345678",
			wantEmail:    "kakao@example.com",
			wantNickname: "kakao-nick",
			wantAvatar:   "https://k.example.com/thumb.png",
			wantThumb:    "https://k.example.com/thumb.png",
		},
		{
			name:         "naver nested response",
			registration: "naver",
			attrs:        naver,
			wantID:       "naver-123",
			wantEmail:    "naver@example.com",
			wantNickname: "naver-nick",
			wantAvatar:   "https://n.example.com/p.png",
			wantThumb:    "https://n.example.com/p.png",
		},
		{
			name:         "google sub",
			registration: "Google",
			attrs:        google,
			wantID:       "google-sub",
			wantEmail:    "google@example.com",
			wantNickname: "Google User",
			wantAvatar:   "https://g.example.com/p.png",
			wantThumb:    "https://g.example.com/p.png",
		},
		{
			name:         "google falls back to id",
			registration: "google",
			attrs:        map[string]any{"id": "legacy-id"},
			wantID:       "legacy-id",
		},
		{
			name:         "unknown provider generic keys",
			registration: "github",
			attrs:        generic,
			wantID:       "42",
			wantEmail:    "gh@example.com",
			wantNickname: "octo",
			wantAvatar:   "https://gh.example.com/p.png",
			wantThumb:    "https://gh.example.com/p.png",
		},
		{
			name:         "missing everything",
			registration: "kakao",
			attrs:        map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantID, ExtractProviderUserID(tt.registration, tt.attrs))
			assert.Equal(t, tt.wantEmail, ExtractEmail(tt.registration, tt.attrs))
			assert.Equal(t, tt.wantNickname, ExtractNickname(tt.registration, tt.attrs))
			assert.Equal(t, tt.wantAvatar, ExtractAvatarURL(tt.registration, tt.attrs))
			assert.Equal(t, tt.wantThumb, ExtractThumbnailURL(tt.registration, tt.attrs))
		})
	}
}
