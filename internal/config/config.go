package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/pwcheck/internal/session"
	"github.com/jwalitptl/pwcheck/pkg/logger"
	"github.com/jwalitptl/pwcheck/pkg/security"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Session    SessionConfig    `mapstructure:"session"`
	Hashing    HashingConfig    `mapstructure:"hashing"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes" validate:"gt=0"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type SessionConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=memory redis"`
	CookieName      string        `mapstructure:"cookie_name" validate:"required"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Prefix       string        `mapstructure:"prefix"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
	PoolSize     int           `mapstructure:"pool_size" validate:"gte=0"`
	MinIdleConns int           `mapstructure:"min_idle_conns" validate:"gte=0"`
}

type HashingConfig struct {
	Algorithm    string       `mapstructure:"algorithm" validate:"oneof=sha256-crypt bcrypt argon2id"`
	SHA256Rounds int          `mapstructure:"sha256_rounds" validate:"min=1000,max=999999999"`
	BcryptCost   int          `mapstructure:"bcrypt_cost" validate:"min=4,max=31"`
	Argon2       Argon2Config `mapstructure:"argon2"`
}

type Argon2Config struct {
	MemoryKiB   uint32 `mapstructure:"memory_kib" validate:"min=8192,max=4194304"`
	Iterations  uint32 `mapstructure:"iterations" validate:"min=1,max=20"`
	Parallelism uint8  `mapstructure:"parallelism" validate:"min=1,max=64"`
	SaltLength  uint32 `mapstructure:"salt_length" validate:"min=8,max=64"`
	KeyLength   uint32 `mapstructure:"key_length" validate:"min=16,max=64"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	ClientTTL         time.Duration `mapstructure:"client_ttl" validate:"gt=0"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	MetricsPath       string `mapstructure:"metrics_path" validate:"startswith=/"`
	Namespace         string `mapstructure:"namespace" validate:"required"`
}

// envOverrides lists the environment variables (PWCHECK_ prefix) that win
// over the config file. Unset variables leave the file value alone.
type envOverrides struct {
	Port           *int           `envconfig:"PORT"`
	LogLevel       *string        `envconfig:"LOG_LEVEL"`
	LogFormat      *string        `envconfig:"LOG_FORMAT"`
	SessionDriver  *string        `envconfig:"SESSION_DRIVER"`
	SessionTTL     *time.Duration `envconfig:"SESSION_TTL"`
	CookieSecure   *bool          `envconfig:"COOKIE_SECURE"`
	RedisURL       *string        `envconfig:"REDIS_URL"`
	HashAlgorithm  *string        `envconfig:"HASH_ALGORITHM"`
	SHA256Rounds   *int           `envconfig:"SHA256_ROUNDS"`
	BcryptCost     *int           `envconfig:"BCRYPT_COST"`
	RateLimitRPS   *float64       `envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst *int           `envconfig:"RATE_LIMIT_BURST"`
	MetricsEnabled *bool          `envconfig:"METRICS_ENABLED"`
}

const envPrefix = "PWCHECK"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.max_body_bytes", 64<<10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("session.driver", session.DriverMemory)
	v.SetDefault("session.cookie_name", "pwcheck_session")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.cleanup_interval", 10*time.Minute)
	v.SetDefault("session.redis.prefix", "pwcheck:session")
	v.SetDefault("session.redis.max_retries", 3)
	v.SetDefault("session.redis.retry_backoff", 8*time.Millisecond)
	v.SetDefault("session.redis.pool_size", 10)
	v.SetDefault("session.redis.min_idle_conns", 0)

	def := security.DefaultConfig()
	v.SetDefault("hashing.algorithm", string(def.Algorithm))
	v.SetDefault("hashing.sha256_rounds", def.SHA256Rounds)
	v.SetDefault("hashing.bcrypt_cost", def.BcryptCost)
	v.SetDefault("hashing.argon2.memory_kib", def.Argon2.MemoryKiB)
	v.SetDefault("hashing.argon2.iterations", def.Argon2.Iterations)
	v.SetDefault("hashing.argon2.parallelism", def.Argon2.Parallelism)
	v.SetDefault("hashing.argon2.salt_length", def.Argon2.SaltLength)
	v.SetDefault("hashing.argon2.key_length", def.Argon2.KeyLength)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 2.0)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.client_ttl", 10*time.Minute)

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.namespace", "pwcheck")
}

// LoadConfig reads defaults, then the optional config file, then PWCHECK_*
// environment overrides, and validates the result. An explicit file path
// (argument or PWCHECK_CONFIG_FILE) must exist; the search path may be empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.Port != nil {
		cfg.Server.Port = *env.Port
	}
	if env.LogLevel != nil {
		cfg.Log.Level = *env.LogLevel
	}
	if env.LogFormat != nil {
		cfg.Log.Format = *env.LogFormat
	}
	if env.SessionDriver != nil {
		cfg.Session.Driver = *env.SessionDriver
	}
	if env.SessionTTL != nil {
		cfg.Session.TTL = *env.SessionTTL
	}
	if env.CookieSecure != nil {
		cfg.Session.CookieSecure = *env.CookieSecure
	}
	if env.RedisURL != nil {
		cfg.Session.Redis.URL = *env.RedisURL
	}
	if env.HashAlgorithm != nil {
		cfg.Hashing.Algorithm = *env.HashAlgorithm
	}
	if env.SHA256Rounds != nil {
		cfg.Hashing.SHA256Rounds = *env.SHA256Rounds
	}
	if env.BcryptCost != nil {
		cfg.Hashing.BcryptCost = *env.BcryptCost
	}
	if env.RateLimitRPS != nil {
		cfg.RateLimit.RequestsPerSecond = *env.RateLimitRPS
	}
	if env.RateLimitBurst != nil {
		cfg.RateLimit.Burst = *env.RateLimitBurst
	}
	if env.MetricsEnabled != nil {
		cfg.Monitoring.PrometheusEnabled = *env.MetricsEnabled
	}
	return nil
}

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.Hashing.Algorithm = strings.ToLower(c.Hashing.Algorithm)

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Session.Driver == session.DriverRedis && c.Session.Redis.URL == "" {
		return fmt.Errorf("invalid config: session.redis.url is required when session.driver is %q", session.DriverRedis)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
	}
}

func (c *Config) SessionStoreConfig() session.Config {
	return session.Config{
		Driver:          c.Session.Driver,
		TTL:             c.Session.TTL,
		CleanupInterval: c.Session.CleanupInterval,
		Redis: session.RedisConfig{
			URL:          c.Session.Redis.URL,
			Prefix:       c.Session.Redis.Prefix,
			TTL:          c.Session.TTL,
			MaxRetries:   c.Session.Redis.MaxRetries,
			RetryBackoff: c.Session.Redis.RetryBackoff,
			PoolSize:     c.Session.Redis.PoolSize,
			MinIdleConns: c.Session.Redis.MinIdleConns,
		},
	}
}

func (c *Config) HasherConfig() security.Config {
	return security.Config{
		Algorithm:    security.Algorithm(c.Hashing.Algorithm),
		SHA256Rounds: c.Hashing.SHA256Rounds,
		BcryptCost:   c.Hashing.BcryptCost,
		Argon2: security.Argon2Params{
			MemoryKiB:   c.Hashing.Argon2.MemoryKiB,
			Iterations:  c.Hashing.Argon2.Iterations,
			Parallelism: c.Hashing.Argon2.Parallelism,
			SaltLength:  c.Hashing.Argon2.SaltLength,
			KeyLength:   c.Hashing.Argon2.KeyLength,
		},
	}
}
