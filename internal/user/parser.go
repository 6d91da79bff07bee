package user

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Attribute paths differ per provider; anything unrecognised falls back to
// the flat OIDC-style keys.

func ExtractProviderUserID(registrationID string, attrs map[string]any) string {
	switch normalizeRegistration(registrationID) {
	case "kakao":
		return lookup(attrs, "id")
	case "naver":
		return lookup(attrs, "response", "id")
	case "google":
		return firstNonBlank(lookup(attrs, "sub"), lookup(attrs, "id"))
	default:
		return lookup(attrs, "id")
	}
}

func ExtractEmail(registrationID string, attrs map[string]any) string {
	switch normalizeRegistration(registrationID) {
	case "kakao":
		return lookup(attrs, "kakao_account", "email")
	case "naver":
		return lookup(attrs, "response", "email")
	default:
		return lookup(attrs, "email")
	}
}

func ExtractNickname(registrationID string, attrs map[string]any) string {
	switch normalizeRegistration(registrationID) {
	case "kakao":
		return firstNonBlank(
			lookup(attrs, "kakao_account", "profile", "nickname"),
			lookup(attrs, "properties", "nickname"),
		)
	case "naver":
		return firstNonBlank(lookup(attrs, "response", "nickname"), lookup(attrs, "response", "name"))
	case "google":
		return firstNonBlank(lookup(attrs, "name"), lookup(attrs, "given_name"))
	default:
		return lookup(attrs, "name")
	}
}

func ExtractAvatarURL(registrationID string, attrs map[string]any) string {
	switch normalizeRegistration(registrationID) {
	case "kakao":
		return firstNonBlank(
			lookup(attrs, "kakao_account", "profile", "profile_image_url"),
			lookup(attrs, "kakao_account", "profile", "thumbnail_image_url"),
		)
	case "naver":
		return lookup(attrs, "response", "profile_image")
	default:
		return lookup(attrs, "picture")
	}
}

func ExtractThumbnailURL(registrationID string, attrs map[string]any) string {
	if normalizeRegistration(registrationID) == "kakao" {
		return firstNonBlank(
			lookup(attrs, "kakao_account", "profile", "thumbnail_image_url"),
			lookup(attrs, "kakao_account", "profile", "profile_image_url"),
		)
	}
	return ExtractAvatarURL(registrationID, attrs)
}

func normalizeRegistration(registrationID string) string {
	return strings.ToLower(strings.TrimSpace(registrationID))
}

// lookup walks nested maps and renders the leaf as a string.
func lookup(attrs map[string]any, path ...string) string {
	var current any = attrs
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = m[key]
		if !ok {
			return ""
		}
	}
	return strings.TrimSpace(stringify(current))
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case json.Number:
		return value.String()
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(value)
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
