package denylist

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/chef-identity/internal/config"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			func(config *config.AppConfig, log *zap.Logger, repo Repository) *Service {
				return NewService(&config.Denylist, log, repo)
			},
			fx.Annotate(
				func(service *Service) Checker {
					return service
				},
			),
			func(config *config.AppConfig, service *Service, log *zap.Logger) *CleanupJob {
				return NewCleanupJob(service, log, config.Denylist.CleanupSchedule)
			},
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(lifecycle fx.Lifecycle, job *CleanupJob) {
	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return job.Start()
		},
		OnStop: job.Stop,
	})
}
