package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"livetranslate/internal/core/domain"
	"livetranslate/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "livetranslate:events"

var ErrAlreadySubscribed = errors.New("event bus already subscribed")

// LocalDeliverer hands an event to the watchers connected to this instance.
type LocalDeliverer interface {
	Deliver(event domain.SessionEvent)
}

// RedisBus relays session events between instances over Redis pub/sub.
type RedisBus struct {
	client     *redis.Client
	instanceID string
	channel    string
	local      LocalDeliverer
	logger     *zap.SugaredLogger
	// breaker stops cross-instance publishes from waiting on a dead Redis
	breaker *circuitbreaker.CircuitBreaker

	mu      sync.Mutex
	running bool
	ready   chan struct{}
}

func NewRedisBus(client *redis.Client, instanceID string, local LocalDeliverer, logger *zap.SugaredLogger) *RedisBus {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:    5,
		SuccessThreshold:    1,
		Timeout:             10 * time.Second,
		MaxRequestsHalfOpen: 1,
	})
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("event bus circuit changed state",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &RedisBus{
		client:     client,
		instanceID: instanceID,
		channel:    DefaultChannel,
		local:      local,
		logger:     logger,
		breaker:    breaker,
		ready:      make(chan struct{}),
	}
}

// Publish delivers locally and then broadcasts to the other instances.
func (b *RedisBus) Publish(ctx context.Context, event domain.SessionEvent) error {
	b.local.Deliver(event)

	event.InstanceID = b.instanceID
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = b.breaker.Execute(func() error {
		return b.client.Publish(ctx, b.channel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debugw("published event",
		"type", event.Type,
		"session_id", event.SessionID,
	)
	return nil
}

// Ready is closed once Run holds an active subscription.
func (b *RedisBus) Ready() <-chan struct{} {
	return b.ready
}

// Run relays events published by other instances until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadySubscribed
	}
	b.running = true
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	close(b.ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.SessionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			// Skip events from this instance
			if event.InstanceID == b.instanceID {
				continue
			}
			b.local.Deliver(event)
		}
	}
}
