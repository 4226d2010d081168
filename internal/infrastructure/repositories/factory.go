package repositories

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"livetranslate/internal/core/ports"
	"livetranslate/internal/infrastructure/repositories/gormstore"
	"livetranslate/internal/infrastructure/repositories/memory"
	redisrepo "livetranslate/internal/infrastructure/repositories/redis"
	"livetranslate/pkg/config"
	"livetranslate/pkg/retry"
)

// RepositoryFactory creates repositories for the configured storage backend
type RepositoryFactory struct {
	backend     string
	db          *gorm.DB
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects the configured backend. Redis storage falls back to memory
// when unreachable; SQL backends fail hard.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		backend: cfg.Storage.Backend,
		logger:  logger,
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Storage.ConnectAttempts - 1
	retryCfg.InitialDelay = cfg.Retry.InitialDelay
	retryCfg.MaxDelay = cfg.Retry.MaxDelay
	ctx := context.Background()

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := retry.RetryWithResult(ctx, retryCfg, func() (*gorm.DB, error) {
			return gormstore.OpenPostgres(cfg.PostgresDSN(), cfg.Storage.Postgres.MaxConns, logger)
		})
		if err != nil {
			return nil, fmt.Errorf("postgres storage: %w", err)
		}
		factory.db = db
	case config.BackendSQLite:
		db, err := retry.RetryWithResult(ctx, retryCfg, func() (*gorm.DB, error) {
			return gormstore.OpenSQLite(cfg.Storage.SQLite.Path, logger)
		})
		if err != nil {
			return nil, fmt.Errorf("sqlite storage: %w", err)
		}
		factory.db = db
	}

	if cfg.Storage.Backend == config.BackendRedis || cfg.Redis.EventBus {
		client, err := retry.RetryWithResult(ctx, retryCfg, func() (*redis.Client, error) {
			return redisrepo.NewRedisClient(
				cfg.Redis.Address,
				cfg.Redis.Password,
				cfg.Redis.DB,
				cfg.Redis.PoolSize,
				logger,
			)
		})
		if err != nil {
			logger.Warnw("failed to connect to Redis",
				"error", err,
				"storage_backend", cfg.Storage.Backend,
			)
			if factory.backend == config.BackendRedis {
				logger.Warn("falling back to memory repositories")
				factory.backend = config.BackendMemory
			}
		} else {
			factory.redisClient = client
		}
	}

	logger.Infow("storage ready", "backend", factory.backend)
	return factory, nil
}

// Backend reports the backend actually in use after any fallback.
func (f *RepositoryFactory) Backend() string {
	return f.backend
}

// RedisClient returns the shared Redis client, or nil when Redis is not connected.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) CreateUserRepository() ports.UserRepository {
	switch f.backend {
	case config.BackendPostgres, config.BackendSQLite:
		return gormstore.NewUserRepository(f.db)
	case config.BackendRedis:
		return redisrepo.NewRedisUserRepository(f.redisClient)
	default:
		return memory.NewMemoryUserRepository()
	}
}

func (f *RepositoryFactory) CreateSessionRepository() ports.SessionRepository {
	switch f.backend {
	case config.BackendPostgres, config.BackendSQLite:
		return gormstore.NewSessionRepository(f.db)
	case config.BackendRedis:
		return redisrepo.NewRedisSessionRepository(f.redisClient)
	default:
		return memory.NewMemorySessionRepository()
	}
}

func (f *RepositoryFactory) CreateParticipantRepository() ports.ParticipantRepository {
	switch f.backend {
	case config.BackendPostgres, config.BackendSQLite:
		return gormstore.NewParticipantRepository(f.db)
	case config.BackendRedis:
		return redisrepo.NewRedisParticipantRepository(f.redisClient)
	default:
		return memory.NewMemoryParticipantRepository()
	}
}

// Close releases database and Redis connections
func (f *RepositoryFactory) Close() error {
	var firstErr error
	if f.db != nil {
		if err := gormstore.Close(f.db); err != nil {
			firstErr = err
		}
		f.db = nil
	}
	if f.redisClient != nil {
		if err := redisrepo.CloseRedisClient(f.redisClient); err != nil && firstErr == nil {
			firstErr = err
		}
		f.redisClient = nil
	}
	return firstErr
}

// HealthCheck pings every connected store
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.db != nil {
		if err := gormstore.Ping(ctx, f.db); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
