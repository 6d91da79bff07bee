package denylist

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	hashKeyPrefix   = "HASH:"
	maxReasonLength = 100
	maxKeyLength    = 255
)

// Entry is one revoked token, keyed by jti or by a hash of the raw token.
type Entry struct {
	ID        int64     `gorm:"primaryKey"`
	TokenKey  string    `gorm:"column:token_key;not null;uniqueIndex"`
	RevokedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	Reason    *string
}

func (Entry) TableName() string {
	return "jwt_denylist"
}

// HashKey derives the synthetic key for a token revoked without a jti.
func HashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hashKeyPrefix + hex.EncodeToString(sum[:])
}

// key picks the storage key: the jti when present, otherwise the hash.
func key(jti, token string) string {
	if k := jtiKey(jti); k != "" {
		return k
	}
	return HashKey(token)
}

// jtiKey maps a jti to its stored form. A jti too long for the column is
// stored by its hash so lookups with the full jti still match.
func jtiKey(jti string) string {
	jti = strings.TrimSpace(jti)
	if len(jti) > maxKeyLength {
		return HashKey(jti)
	}
	return jti
}
