package provider

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupported = errors.New("unsupported provider")

// Provider identifies how a user authenticated.
type Provider string

const (
	Local   Provider = "LOCAL"
	Kakao   Provider = "KAKAO"
	Naver   Provider = "NAVER"
	Google  Provider = "GOOGLE"
	Unknown Provider = "UNKNOWN"
)

var all = []Provider{Local, Kakao, Naver, Google, Unknown}

func (p Provider) String() string {
	return string(p)
}

// FromRegistrationID maps an OAuth2 client registration id to its provider.
func FromRegistrationID(registrationID string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(registrationID)) {
	case "kakao":
		return Kakao, nil
	case "naver":
		return Naver, nil
	case "google":
		return Google, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, registrationID)
	}
}

// Parse accepts any known provider name, case-insensitively.
func Parse(value string) (Provider, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	for _, p := range all {
		if string(p) == value {
			return p, true
		}
	}
	return "", false
}
