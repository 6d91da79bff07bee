package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/migration"
	"github.com/elskow/chef-identity/internal/server"
)

func main() {
	command := flag.String("command", "up", "migration command (up/down/down-to/status/version/reset)")
	target := flag.Int64("version", 0, "target version for down-to")
	flag.Parse()

	_ = godotenv.Load()
	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", server.EnvDevelopment)
	}

	log, err := server.NewLogger(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	migrator, err := migration.NewMigrator(&cfg.Database)
	if err != nil {
		log.Fatal("failed to create migrator", zap.Error(err))
	}
	defer migrator.Close()

	if err := run(migrator, *command, *target, log); err != nil {
		log.Fatal("migration failed", zap.String("command", *command), zap.Error(err))
	}
}

func run(m *migration.Migrator, command string, target int64, log *zap.Logger) error {
	switch command {
	case "up":
		if err := m.Up(); err != nil {
			return err
		}
		log.Info("applied pending migrations")
	case "down":
		if err := m.Down(); err != nil {
			return err
		}
		log.Info("rolled back one migration")
	case "down-to":
		if err := m.DownTo(target); err != nil {
			return err
		}
		log.Info("rolled back migrations", zap.Int64("version", target))
	case "status":
		return m.Status()
	case "version":
		version, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("current migration version", zap.Int64("version", version))
	case "reset":
		if err := m.Reset(); err != nil {
			return err
		}
		log.Info("reset all migrations")
	default:
		log.Fatal("unknown command", zap.String("command", command))
	}
	return nil
}
