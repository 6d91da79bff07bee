package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/chef-identity/internal/config"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(lifecycle fx.Lifecycle, config *config.AppConfig, logger *zap.Logger) (*redis.Client, error) {
				client, err := NewRedisClient(context.Background(), config.Redis)
				if err != nil {
					return nil, err
				}
				lifecycle.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						logger.Info("Closing redis client")
						return client.Close()
					},
				})
				return client, nil
			},
		),
	)
}
