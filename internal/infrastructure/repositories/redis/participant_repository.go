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

type RedisParticipantRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisParticipantRepository(client *redis.Client) ports.ParticipantRepository {
	return &RedisParticipantRepository{
		client: client,
		prefix: keyPrefix + "participant:",
	}
}

func (r *RedisParticipantRepository) participantKey(id domain.ParticipantID) string {
	return r.prefix + string(id)
}

// activeKey holds the id of the open participation for a (session, user) pair.
func (r *RedisParticipantRepository) activeKey(sessionID domain.SessionID, userID domain.UserID) string {
	return r.prefix + "active:" + string(sessionID) + ":" + string(userID)
}

func (r *RedisParticipantRepository) sessionIndexKey(sessionID domain.SessionID) string {
	return keyPrefix + "session:" + string(sessionID) + ":participants"
}

func (r *RedisParticipantRepository) userIndexKey(userID domain.UserID) string {
	return keyPrefix + "user:" + string(userID) + ":participations"
}

func (r *RedisParticipantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	data, err := json.Marshal(participant)
	if err != nil {
		return fmt.Errorf("failed to marshal participant: %w", err)
	}

	if participant.Active() {
		claimed, err := r.client.SetNX(ctx, r.activeKey(participant.SessionID, participant.UserID), string(participant.ID), 0).Result()
		if err != nil {
			return fmt.Errorf("failed to claim participation in Redis: %w", err)
		}
		if !claimed {
			return domain.ErrAlreadyJoined
		}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.participantKey(participant.ID), data, 0)
		pipe.SAdd(ctx, r.sessionIndexKey(participant.SessionID), string(participant.ID))
		pipe.SAdd(ctx, r.userIndexKey(participant.UserID), string(participant.ID))
		return nil
	})
	if err != nil {
		if participant.Active() {
			r.client.Del(ctx, r.activeKey(participant.SessionID, participant.UserID))
		}
		return fmt.Errorf("failed to store participant in Redis: %w", err)
	}
	return nil
}

func (r *RedisParticipantRepository) FindActive(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.Participant, error) {
	id, err := r.client.Get(ctx, r.activeKey(sessionID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active participation from Redis: %w", err)
	}
	return r.get(ctx, domain.ParticipantID(id))
}

func (r *RedisParticipantRepository) get(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error) {
	data, err := r.client.Get(ctx, r.participantKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant from Redis: %w", err)
	}
	return decodeParticipant(data)
}

func (r *RedisParticipantRepository) MarkLeft(ctx context.Context, id domain.ParticipantID, leftAt time.Time) error {
	key := r.participantKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrParticipantNotFound
		}
		if err != nil {
			return err
		}
		p, err := decodeParticipant(data)
		if err != nil {
			return err
		}
		if !p.Active() {
			return domain.ErrParticipantNotFound
		}
		p.LeftAt = &leftAt

		encoded, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal participant: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			pipe.Del(ctx, r.activeKey(p.SessionID, p.UserID))
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, domain.ErrParticipantNotFound) {
				return err
			}
			return fmt.Errorf("failed to mark participant left in Redis: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to mark participant left in Redis: %w", redis.TxFailedErr)
}

func (r *RedisParticipantRepository) ListBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Participant, error) {
	return r.listFromSet(ctx, r.sessionIndexKey(sessionID), func(*domain.Participant) bool { return true })
}

func (r *RedisParticipantRepository) ListActiveByUser(ctx context.Context, userID domain.UserID) ([]*domain.Participant, error) {
	return r.listFromSet(ctx, r.userIndexKey(userID), (*domain.Participant).Active)
}

func (r *RedisParticipantRepository) listFromSet(ctx context.Context, setKey string, match func(*domain.Participant) bool) ([]*domain.Participant, error) {
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read participant index from Redis: %w", err)
	}

	result := make([]*domain.Participant, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.participantKey(domain.ParticipantID(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load participants from Redis: %w", err)
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decodeParticipant([]byte(raw))
		if err != nil {
			return nil, err
		}
		if match(p) {
			result = append(result, p)
		}
	}
	domain.SortByJoinTime(result)
	return result, nil
}

func decodeParticipant(data []byte) (*domain.Participant, error) {
	var p domain.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participant: %w", err)
	}
	return &p, nil
}
