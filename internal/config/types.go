package config

import "time"

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type GRPCConfig struct {
	EnableReflection      bool `mapstructure:"enable_reflection"`
	MaxReceiveMessageSize int  `mapstructure:"max_receive_message_size"`
	MaxSendMessageSize    int  `mapstructure:"max_send_message_size"`
}

type HTTPConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	Issuer            string        `mapstructure:"issuer"`
	TokenExpiration   time.Duration `mapstructure:"token_expiration"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	DeviceHeader      string        `mapstructure:"device_header"`
	SessionCookie     string        `mapstructure:"session_cookie"`
}

// LockoutConfig drives the local-login failure counter.
type LockoutConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	LockDuration   time.Duration `mapstructure:"lock_duration"`
	ExtendDuration time.Duration `mapstructure:"extend_duration"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type DenylistConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

type LedgerConfig struct {
	StatsWindow time.Duration `mapstructure:"stats_window"`
	TopLimit    int           `mapstructure:"top_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type AppConfig struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	GRPC        GRPCConfig      `mapstructure:"grpc"`
	HTTP        HTTPConfig      `mapstructure:"http"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Lockout     LockoutConfig   `mapstructure:"lockout"`
	Session     SessionConfig   `mapstructure:"session"`
	Denylist    DenylistConfig  `mapstructure:"denylist"`
	Ledger      LedgerConfig    `mapstructure:"ledger"`
	RateLimit   RateLimitConfig `mapstructure:"ratelimit"`
	Admin       AdminConfig     `mapstructure:"admin"`
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
