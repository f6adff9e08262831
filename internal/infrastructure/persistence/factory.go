package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/config"
	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/persistence/memory"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/persistence/postgres"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/persistence/redis"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/persistence/sqlite"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
)

// Backend is an opened, guarded store and the resources behind it.
type Backend struct {
	Name  string
	Store *GuardedStore

	// Redis is the shared client when Name is redis, nil otherwise.
	Redis goredis.UniversalClient

	closer io.Closer
}

// Close releases the backend.
func (b *Backend) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Open connects the configured backend and wraps it with NewGuardedStore.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger, observer Observer) (*Backend, error) {
	if log == nil {
		log = logger.Nop()
	}

	var (
		inner  progress.Store
		closer io.Closer
		client goredis.UniversalClient
	)

	switch cfg.Backend {
	case config.BackendMemory:
		s := memory.NewStore()
		inner, closer = s, s

	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		inner, closer = s, s

	case config.BackendRedis:
		rc := redis.DefaultConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		rc.TTL = cfg.RedisTTL
		s, err := redis.NewStore(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		inner, closer, client = s, s, s.Client()

	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		inner, closer = s, s

	default:
		return nil, errors.New("unknown store backend: " + cfg.Backend)
	}

	guard := DefaultGuardConfig(cfg.Backend)
	if cfg.RetryAttempts > 0 {
		guard.RetryAttempts = cfg.RetryAttempts
	}
	if cfg.BreakerThreshold > 0 {
		guard.BreakerThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerCooldown > 0 {
		guard.BreakerCooldown = cfg.BreakerCooldown
	}
	if cfg.BreakerSuccesses > 0 {
		guard.BreakerSuccesses = cfg.BreakerSuccesses
	}

	log.Info("store opened", logger.Backend(cfg.Backend))
	return &Backend{
		Name:   cfg.Backend,
		Store:  NewGuardedStore(inner, guard, log, observer),
		Redis:  client,
		closer: closer,
	}, nil
}
