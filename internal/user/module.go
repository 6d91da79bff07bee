package user

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/elskow/chef-identity/internal/credential"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			// Credential lockout resolves emails through the account table.
			fx.Annotate(
				func(repo Repository) credential.Accounts {
					return repo
				},
			),
			NewService,
			NewOAuthService,
		),
	)
}
