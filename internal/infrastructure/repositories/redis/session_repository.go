package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
)

type RedisSessionRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionRepository(client *redis.Client) ports.SessionRepository {
	return &RedisSessionRepository{
		client: client,
		prefix: keyPrefix + "session:",
	}
}

func (r *RedisSessionRepository) sessionKey(id domain.SessionID) string {
	return r.prefix + string(id)
}

func (r *RedisSessionRepository) activeSessionsKey() string {
	return r.prefix + "active"
}

func (r *RedisSessionRepository) hostKey(hostID domain.UserID) string {
	return r.prefix + "host:" + string(hostID)
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID), data, 0)
		if session.Active() {
			pipe.SAdd(ctx, r.activeSessionsKey(), string(session.ID))
			pipe.SAdd(ctx, r.hostKey(session.HostID), string(session.ID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}
	return decodeSession(data)
}

func (r *RedisSessionRepository) MarkEnded(ctx context.Context, id domain.SessionID, endedAt time.Time) (*domain.Session, error) {
	key := r.sessionKey(id)
	var ended *domain.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		session.Status = domain.SessionEnded
		session.EndedAt = &endedAt

		encoded, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			pipe.SRem(ctx, r.activeSessionsKey(), string(id))
			pipe.SRem(ctx, r.hostKey(session.HostID), string(id))
			return nil
		})
		if err == nil {
			ended = session
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to end session in Redis: %w", err)
		}
		return ended, nil
	}
	return nil, fmt.Errorf("failed to end session in Redis: %w", redis.TxFailedErr)
}

func (r *RedisSessionRepository) ListActiveVisible(ctx context.Context, viewer domain.UserID) ([]*domain.Session, error) {
	return r.listFromSet(ctx, r.activeSessionsKey(), func(s *domain.Session) bool {
		return s.VisibleTo(viewer)
	})
}

func (r *RedisSessionRepository) ListActiveByHost(ctx context.Context, hostID domain.UserID) ([]*domain.Session, error) {
	return r.listFromSet(ctx, r.hostKey(hostID), func(s *domain.Session) bool {
		return s.HostID == hostID
	})
}

// listFromSet loads the sessions indexed by setKey, keeping ACTIVE ones that match.
func (r *RedisSessionRepository) listFromSet(ctx context.Context, setKey string, match func(*domain.Session) bool) ([]*domain.Session, error) {
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session index from Redis: %w", err)
	}

	result := make([]*domain.Session, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(domain.SessionID(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions from Redis: %w", err)
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a document
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		if session.Active() && match(session) {
			result = append(result, session)
		}
	}
	domain.SortNewestFirst(result)
	return result, nil
}

func decodeSession(data []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}
