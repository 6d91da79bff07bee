package credential

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
			fx.Annotate(
				func(config *config.AppConfig) PasswordHasher {
					return NewBcryptHasher(config.Auth.BcryptCost)
				},
			),
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger, repo Repository, accounts Accounts) *Policy {
					return NewPolicy(&config.Lockout, log, repo, accounts)
				},
			),
		),
	)
}
