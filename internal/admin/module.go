package admin

import (
	"go.uber.org/fx"

	"github.com/elskow/chef-identity/internal/httpx"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			NewFacade,
			httpx.AsRoutes(NewHandler),
		),
	)
}
