package session

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/chef-identity/internal/config"
	"github.com/elskow/chef-identity/internal/device"
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
				func(client *redis.Client, config *config.AppConfig) Store {
					return NewRedisStore(client, config.Redis.KeyPrefix, config.Session.TTL)
				},
			),
			NewService,
			fx.Annotate(
				func(log *zap.Logger, sessions *Service, store Store, devices *device.Registry, config *config.AppConfig) *Gate {
					return NewGate(log, sessions, store, devices, config.Auth.SessionCookie)
				},
			),
		),
	)
}
