package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"livetranslate/pkg/distributed"
)

const (
	schemaVersionKey     = keyPrefix + "schema:version"
	schemaLayoutKey      = keyPrefix + "schema:layout"
	schemaLockKey        = keyPrefix + "schema:lock"
	currentSchemaVersion = 2
)

// Migration represents a keyspace migration
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
}

// Migrate runs all pending migrations. Instances starting together serialize on a
// Redis lock; the version is read only once the lock is held.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	lock := distributed.NewLock(client, schemaLockKey, 30*time.Second)
	if err := lock.Acquire(ctx, 10*time.Second); err != nil {
		return fmt.Errorf("failed to acquire schema lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && logger != nil {
			logger.Warnw("failed to release schema lock", "error", err)
		}
	}()

	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Debugw("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// Version 1 documents the key layout for operators inspecting the keyspace.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client) error {
				return client.HSet(ctx, schemaLayoutKey, map[string]interface{}{
					"user":             keyPrefix + "user:{id}",
					"user_email":       keyPrefix + "user:email:{email}",
					"session":          keyPrefix + "session:{id}",
					"session_active":   keyPrefix + "session:active",
					"session_host":     keyPrefix + "session:host:{user_id}",
					"participant":      keyPrefix + "participant:{id}",
					"participant_lock": keyPrefix + "participant:active:{session_id}:{user_id}",
				}).Err()
			},
		},
		{
			// Version 2 adds per-session and per-user participant indexes.
			Version: 2,
			Up: func(ctx context.Context, client *redis.Client) error {
				return client.HSet(ctx, schemaLayoutKey, map[string]interface{}{
					"session_participants": keyPrefix + "session:{id}:participants",
					"user_participations":  keyPrefix + "user:{id}:participations",
				}).Err()
			},
		},
	}
}
