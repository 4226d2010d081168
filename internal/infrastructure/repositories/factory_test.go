package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/infrastructure/repositories/repotest"
	"livetranslate/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.ConnectAttempts = 1
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	return cfg
}

func TestRepositoryFactory_Memory(t *testing.T) {
	f, err := NewRepositoryFactory(testConfig(), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, config.BackendMemory, f.Backend())
	assert.Nil(t, f.RedisClient())
	assert.NoError(t, f.HealthCheck(context.Background()))

	users := f.CreateUserRepository()
	require.NoError(t, users.Create(context.Background(), repotest.NewUser("m@example.com")))
}

func TestRepositoryFactory_RedisFallsBackToMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.Storage.Backend = config.BackendRedis
	cfg.Redis.Address = addr

	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, config.BackendMemory, f.Backend())
	assert.Nil(t, f.RedisClient())
}

func TestRepositoryFactory_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Storage.Backend = config.BackendRedis
	cfg.Redis.Address = mr.Addr()

	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, config.BackendRedis, f.Backend())
	require.NotNil(t, f.RedisClient())
	assert.NoError(t, f.HealthCheck(context.Background()))

	ctx := context.Background()
	u := repotest.NewUser("r@example.com")
	require.NoError(t, f.CreateUserRepository().Create(ctx, u))
	assert.True(t, mr.Exists("livetranslate:user:"+string(u.ID)))

	mr.Close()
	assert.Error(t, f.HealthCheck(ctx))
}

func TestRepositoryFactory_SQLite(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "lt.db")

	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	ctx := context.Background()
	require.NoError(t, f.HealthCheck(ctx))

	host := repotest.NewUser("h@example.com")
	require.NoError(t, f.CreateUserRepository().Create(ctx, host))
	sess := repotest.NewSession(host.ID, false, host.CreatedAt)
	require.NoError(t, f.CreateSessionRepository().Create(ctx, sess))

	hosted, err := f.CreateSessionRepository().ListActiveByHost(ctx, host.ID)
	require.NoError(t, err)
	require.Len(t, hosted, 1)
	assert.Equal(t, domain.SessionActive, hosted[0].Status)

}
