package server

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/elskow/chef-identity/internal/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

func LoadConfig() (*config.AppConfig, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath("./config/server")
	v.AddConfigPath("../config/server")

	v.SetEnvPrefix("CHEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	v.Set("environment", env)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := v.Unmarshal(&cfg, decodeHooks); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Environment-specific sections override the shared ones
	for _, section := range []struct {
		key    string
		target any
	}{
		{key: "grpc", target: &cfg.GRPC},
		{key: "http", target: &cfg.HTTP},
		{key: "database", target: &cfg.Database},
	} {
		key := fmt.Sprintf("%s.%s", section.key, env)
		if envSettings := v.GetStringMap(key); len(envSettings) > 0 {
			if err := v.UnmarshalKey(key, section.target, decodeHooks); err != nil {
				return nil, fmt.Errorf("error unmarshaling env config: %w", err)
			}
		}
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret must be set")
	}

	return &cfg, nil
}

func decodeHooks(dc *mapstructure.DecoderConfig) {
	dc.TagName = "mapstructure"
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "50051")

	v.SetDefault("grpc.enable_reflection", false)
	v.SetDefault("grpc.max_receive_message_size", 4<<20)
	v.SetDefault("grpc.max_send_message_size", 4<<20)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 30)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "chef:session:")

	v.SetDefault("http.allowed_origins", []string{})

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "chef-identity")
	v.SetDefault("auth.token_expiration", "1h")
	v.SetDefault("auth.min_password_length", 8)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.device_header", "X-Device-Id")
	v.SetDefault("auth.session_cookie", "SESSION")

	v.SetDefault("lockout.max_attempts", 5)
	v.SetDefault("lockout.lock_duration", "5m")
	v.SetDefault("lockout.extend_duration", "1m")

	v.SetDefault("session.ttl", "720h")

	v.SetDefault("denylist.default_ttl", "1h")
	v.SetDefault("denylist.cleanup_schedule", "0 0 * * * *")

	v.SetDefault("ledger.stats_window", "168h")
	v.SetDefault("ledger.top_limit", 20)

	v.SetDefault("ratelimit.requests_per_second", 5)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("admin.api_key", "")
}
