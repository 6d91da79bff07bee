package app

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/admin"
	"github.com/elskow/chef-identity/internal/auth"
	"github.com/elskow/chef-identity/internal/cache"
	"github.com/elskow/chef-identity/internal/credential"
	"github.com/elskow/chef-identity/internal/database"
	"github.com/elskow/chef-identity/internal/denylist"
	"github.com/elskow/chef-identity/internal/device"
	"github.com/elskow/chef-identity/internal/ledger"
	"github.com/elskow/chef-identity/internal/migration"
	"github.com/elskow/chef-identity/internal/server"
	"github.com/elskow/chef-identity/internal/session"
	"github.com/elskow/chef-identity/internal/user"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		// Logger
		fx.Provide(newLogger),

		// Configuration
		fx.Provide(server.LoadConfig),

		// Infrastructure
		database.Module(),
		migration.Module(),
		cache.Module(),

		// Domain
		user.NewModule(),
		credential.NewModule(),
		device.NewModule(),
		session.NewModule(),
		ledger.NewModule(),
		denylist.NewModule(),
		auth.NewModule(),
		admin.NewModule(),

		// Servers
		fx.Provide(server.NewServer, server.NewHTTPServer),

		fx.Invoke(registerHooks),
	)
}

func newLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	return server.NewLogger(env)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	shutdowner fx.Shutdowner,
	srv *server.Server,
	httpSrv *server.HTTPServer,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("failed to start gRPC server", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			go func() {
				if err := httpSrv.Start(); err != nil {
					log.Error("failed to start HTTP server", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down servers...")
			srv.Stop()
			return httpSrv.Stop(ctx)
		},
	})
}
