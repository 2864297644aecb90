package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/spec-kit/user-guard/pkg/util/errorutil"
)

var (
	// ErrMissingJWTSecret is returned by Validate when no signing secret is configured.
	ErrMissingJWTSecret = errors.New("JWT_SECRET is not configured")
	// ErrMissingDatabaseURL means no store was configured. The in-memory store
	// must be asked for with STORE_DRIVER=memory.
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is not configured (set STORE_DRIVER=memory for a throwaway in-memory store)")
	// ErrMemoryStoreInProduction rejects the per-process store outside development.
	ErrMemoryStoreInProduction = errors.New("in-memory store is not allowed when APP_ENV=production")
)

// EnvProduction is the APP_ENV value of live deployments.
const EnvProduction = "production"

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Store     StoreConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Events    EventsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// APIPrefix is the path prefix a gateway may strip before forwarding.
	APIPrefix   string
	FrontendURL string
}

// StoreConfig selects and tunes the credential store backend.
type StoreConfig struct {
	Driver string
	DSN    string
	// ApplicationName is reported to the database server for each connection.
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig tunes the token bucket guarding credential endpoints.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// EventsConfig configures auth event publishing.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Load reads configuration from .env, an optional YAML file named by CONFIG_FILE
// and environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	ttl, err := ParseTTL(v.GetString("auth.token_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRE: %w", err)
	}

	dsn := v.GetString("store.dsn")
	cfg := &Config{
		App: AppConfig{
			Name:                  v.GetString("app.name"),
			Env:                   v.GetString("app.env"),
			Host:                  v.GetString("app.host"),
			Port:                  v.GetString("app.port"),
			Version:               v.GetString("app.version"),
			RequestTimeoutSeconds: v.GetInt("app.request_timeout_seconds"),
			APIPrefix:             normalizePrefix(v.GetString("app.api_prefix")),
			FrontendURL:           v.GetString("app.frontend_url"),
		},
		Store: StoreConfig{
			Driver:          InferDriver(v.GetString("store.driver"), dsn),
			DSN:             dsn,
			ApplicationName: v.GetString("app.name"),
			MaxConns:        v.GetInt32("store.max_conns"),
			MinConns:        v.GetInt32("store.min_conns"),
			RunMigrations:   v.GetBool("store.run_migrations"),
			ConnMaxIdleSec:  v.GetInt32("store.conn_max_idle_seconds"),
			ConnMaxLifeSec:  v.GetInt32("store.conn_max_life_seconds"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        v.GetBool("rate_limit.enabled"),
			Capacity:       v.GetInt("rate_limit.capacity"),
			RefillInterval: v.GetDuration("rate_limit.refill_interval"),
			TTL:            v.GetDuration("rate_limit.ttl"),
			Prefix:         v.GetString("rate_limit.prefix"),
		},
		Logger: LoggerConfig{
			Level: v.GetString("log.level"),
		},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("auth.jwt_secret"),
			TokenTTL:   ttl,
			BcryptCost: v.GetInt("auth.bcrypt_cost"),
		},
		Events: EventsConfig{
			AMQPURL:  v.GetString("events.amqp_url"),
			Exchange: v.GetString("events.exchange"),
		},
	}

	return cfg, nil
}

// Validate reports configuration that must stop the process from serving.
// Every failure is a configuration error wrapping one of the sentinels above.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return apperrors.NewConfigurationError(ErrMissingJWTSecret)
	}
	switch c.Store.Driver {
	case "":
		return apperrors.NewConfigurationError(ErrMissingDatabaseURL)
	case DriverMemory:
		if strings.EqualFold(c.App.Env, EnvProduction) {
			return apperrors.NewConfigurationError(ErrMemoryStoreInProduction)
		}
	case DriverPostgres, DriverMySQL, DriverSQLite:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return apperrors.NewConfigurationError(ErrMissingDatabaseURL)
		}
	default:
		return apperrors.NewConfigurationError(fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "user-guard-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", "3000")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.request_timeout_seconds", 30)
	v.SetDefault("app.api_prefix", "/api")
	v.SetDefault("app.frontend_url", "*")

	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("store.run_migrations", true)
	v.SetDefault("store.conn_max_idle_seconds", 30)
	v.SetDefault("store.conn_max_life_seconds", 300)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.capacity", 10)
	v.SetDefault("rate_limit.refill_interval", 6*time.Second)
	v.SetDefault("rate_limit.ttl", 10*time.Minute)
	v.SetDefault("rate_limit.prefix", "rl:auth")

	v.SetDefault("log.level", "info")

	v.SetDefault("auth.token_ttl", "7d")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("events.exchange", "auth.events")
}

func bindEnv(v *viper.Viper) error {
	bindings := [][]string{
		{"app.name", "APP_NAME"},
		{"app.env", "APP_ENV", "NODE_ENV"},
		{"app.host", "APP_HOST"},
		{"app.port", "APP_PORT", "PORT"},
		{"app.version", "APP_VERSION"},
		{"app.request_timeout_seconds", "HTTP_REQUEST_TIMEOUT_SECONDS"},
		{"app.api_prefix", "API_PREFIX"},
		{"app.frontend_url", "FRONTEND_URL"},
		{"store.driver", "STORE_DRIVER"},
		{"store.dsn", "DATABASE_URL", "POSTGRES_DSN"},
		{"store.max_conns", "STORE_MAX_CONNS"},
		{"store.min_conns", "STORE_MIN_CONNS"},
		{"store.run_migrations", "STORE_RUN_MIGRATIONS"},
		{"store.conn_max_idle_seconds", "STORE_CONN_MAX_IDLE_SECONDS"},
		{"store.conn_max_life_seconds", "STORE_CONN_MAX_LIFE_SECONDS"},
		{"redis.addr", "REDIS_ADDR"},
		{"redis.password", "REDIS_PASSWORD"},
		{"redis.db", "REDIS_DB"},
		{"rate_limit.enabled", "RATE_LIMIT_ENABLED"},
		{"rate_limit.capacity", "RATE_LIMIT_CAPACITY"},
		{"rate_limit.refill_interval", "RATE_LIMIT_REFILL_INTERVAL"},
		{"rate_limit.ttl", "RATE_LIMIT_TTL"},
		{"rate_limit.prefix", "RATE_LIMIT_PREFIX"},
		{"log.level", "LOG_LEVEL"},
		{"auth.jwt_secret", "JWT_SECRET", "AUTH_JWT_SECRET"},
		{"auth.token_ttl", "JWT_EXPIRE", "AUTH_TOKEN_TTL"},
		{"auth.bcrypt_cost", "AUTH_BCRYPT_COST"},
		{"events.amqp_url", "RABBITMQ_URL", "AMQP_URL"},
		{"events.exchange", "EVENTS_EXCHANGE"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("bind %s: %w", b[0], err)
		}
	}
	return nil
}

// ParseTTL accepts Go durations plus a trailing "d" for whole days ("7d").
func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty duration")
	}
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil {
			return 0, fmt.Errorf("parse days %q: %w", raw, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("non-positive duration %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", raw)
	}
	return d, nil
}

// InferDriver returns the explicit driver, or guesses one from the DSN. With
// neither it returns "" and Validate refuses to start.
func InferDriver(driver, dsn string) string {
	if driver != "" {
		return strings.ToLower(driver)
	}
	lower := strings.ToLower(dsn)
	switch {
	case lower == "":
		return ""
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(lower, "file:"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return DriverSQLite
	case strings.Contains(lower, "@tcp("):
		return DriverMySQL
	}
	return DriverPostgres
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}
