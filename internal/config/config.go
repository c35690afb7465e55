package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	ServiceName string
	Env         string
	LogLevel    string
	LogFile     string

	HTTPAddr        string
	ShutdownTimeout time.Duration

	StoreDriver string
	DatabaseURL string

	// RedisAddr enables the Redis idempotency store; empty keeps keys in memory.
	RedisAddr      string
	IdempotencyTTL time.Duration

	PublishTimeout time.Duration
}

// Load reads the configuration from the environment once at start-up.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		ServiceName: get("SERVICE_NAME", "minishop-orders"),
		Env:         get("ENV", "dev"),
		LogLevel:    get("LOG_LEVEL", "info"),
		LogFile:     getenv("LOG_FILE"),
		HTTPAddr:    get("HTTP_ADDR", ":8080"),
		StoreDriver: get("STORE_DRIVER", StoreMemory),
		DatabaseURL: getenv("DATABASE_URL"),
		RedisAddr:   getenv("REDIS_ADDR"),
	}

	var errs []error
	duration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(get(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
		}
		return d
	}
	cfg.ShutdownTimeout = duration("SHUTDOWN_TIMEOUT", "10s")
	cfg.IdempotencyTTL = duration("IDEMPOTENCY_TTL", "24h")
	cfg.PublishTimeout = duration("PUBLISH_TIMEOUT", "300ms")

	switch cfg.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("config: DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.StoreDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
