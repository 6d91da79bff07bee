package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/elskow/chef-identity/internal/config"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "translated gorm error", err: gorm.ErrDuplicatedKey, want: true},
		{name: "wrapped gorm error", err: fmt.Errorf("insert device: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "postgres unique violation", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "postgres foreign key violation", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "unrelated", err: errors.New("boom"), want: false},
		{name: "record not found", err: gorm.ErrRecordNotFound, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(&config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "chef",
		Password: "secret",
		Name:     "identity",
		SSLMode:  "disable",
	})
	assert.Equal(t, "host=db user=chef password=secret dbname=identity port=5433 sslmode=disable", dsn)
}
