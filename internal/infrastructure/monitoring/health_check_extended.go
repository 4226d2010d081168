package monitoring

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, timeout)
}

// AddStorageCheck checks the session store through ping.
func (h *HealthChecker) AddStorageCheck(name string, ping func(ctx context.Context) error, timeout time.Duration) {
	h.AddCheck("storage:"+name, ping, timeout)
}
