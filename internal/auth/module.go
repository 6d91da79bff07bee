package auth

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/denylist"
	"github.com/elskow/chef-identity/internal/httpx"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig) *JWTCodec {
					return NewJWTCodec(&config.Auth)
				},
			),
			func(codec *JWTCodec, checker denylist.Checker) *denylist.RevocationAwareDecoder {
				return denylist.NewRevocationAwareDecoder(codec, checker)
			},
			NewService,
			func(config *config.AppConfig) *httpx.RateLimiter {
				return httpx.NewRateLimiter(config.RateLimit)
			},
			httpx.AsRoutes(NewHandler),
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *AuthMiddleware {
					return NewAuthMiddleware(svc, log)
				},
			),
			NewIdentityServer,
		),
	)
}
