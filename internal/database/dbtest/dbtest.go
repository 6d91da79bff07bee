// Package dbtest opens a migrated Postgres database for repository
// integration tests. Tests using it are built with the integration tag and
// share one database, so run them with
//
//	CHEF_TEST_DATABASE_HOST=localhost go test -tags integration -p 1 ./...
package dbtest

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/database"
	"github.com/elskow/chef-identity/internal/migration"
)

// Config reads the test database settings. ok is false when
// CHEF_TEST_DATABASE_HOST is unset.
func Config() (cfg config.DatabaseConfig, ok bool) {
	host := os.Getenv("CHEF_TEST_DATABASE_HOST")
	if host == "" {
		return cfg, false
	}
	port, err := strconv.Atoi(envOr("CHEF_TEST_DATABASE_PORT", "5432"))
	if err != nil {
		port = 5432
	}
	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     envOr("CHEF_TEST_DATABASE_USER", "chef"),
		Password: envOr("CHEF_TEST_DATABASE_PASSWORD", "chef"),
		Name:     envOr("CHEF_TEST_DATABASE_NAME", "chef_identity_test"),
		SSLMode:  envOr("CHEF_TEST_DATABASE_SSLMODE", "disable"),
		LogLevel: "silent",
	}, true
}

// Open migrates the test database to the latest schema, empties tables and
// returns a gorm handle closed at the end of the test.
func Open(t *testing.T, tables ...string) *gorm.DB {
	t.Helper()

	cfg, ok := Config()
	if !ok {
		t.Skip("CHEF_TEST_DATABASE_HOST not set")
	}

	migrator, err := migration.NewMigrator(&cfg)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	manager, err := database.NewManager(&cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	db := manager.DB()
	if len(tables) > 0 {
		stmt := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
