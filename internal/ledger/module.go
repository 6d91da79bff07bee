package ledger

import (
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
				return NewService(&config.Ledger, log, repo)
			},
		),
	)
}
