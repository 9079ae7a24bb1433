// Package store provides the durable key/value storage the point store
// persists its snapshot into.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-cli/internal/resilience"
)

// Storage holds opaque values under string keys.
type Storage interface {
	// Get returns the value stored under key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying connection.
	Close() error
}

// Config selects and configures a storage driver.
type Config struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DSN           string `yaml:"dsn" mapstructure:"dsn"`
	Key           string `yaml:"key" mapstructure:"key"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	RetryAttempts int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoff  int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// Open returns a ready-to-use Storage for the configured driver. SQL
// drivers are migrated before returning. Every driver except memory is
// wrapped with transient-error retries.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	driver := strings.ToLower(cfg.Driver)
	policy := resilience.FromSettings(cfg.RetryAttempts, cfg.RetryBackoff)

	switch driver {
	case "", "sqlite":
		st, err := NewSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := migrate(ctx, st, policy, "sqlite"); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return WithRetry(st, "sqlite", policy), nil
	case "postgres":
		st, err := resilience.DoVal(ctx, withLog(policy, "postgres", "connect"), func(ctx context.Context) (*PostgresStorage, error) {
			return NewPostgres(ctx, cfg.DSN)
		})
		if err != nil {
			return nil, err
		}
		if err := migrate(ctx, st, policy, "postgres"); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return WithRetry(st, "postgres", policy), nil
	case "redis":
		st, err := resilience.DoVal(ctx, withLog(policy, "redis", "connect"), func(ctx context.Context) (*RedisStorage, error) {
			return NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		})
		if err != nil {
			return nil, err
		}
		return WithRetry(st, "redis", policy), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

type migrator interface {
	Migrate(ctx context.Context) error
}

func migrate(ctx context.Context, m migrator, policy resilience.RetryConfig, driver string) error {
	return resilience.Do(ctx, withLog(policy, driver, "migrate"), m.Migrate)
}
