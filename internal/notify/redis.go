package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aditpra/smartcare-server/internal/utils"
)

const eventChannel = "smartcare:events"

// envelope wraps an event with the publishing instance id so a bridge
// can ignore its own messages.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge relays committed events between server instances over
// Redis pub/sub, so a dashboard connected to one instance sees changes
// committed on another.
type RedisBridge struct {
	client     *redis.Client
	hub        *Hub
	instanceID string
	logger     *utils.Logger
}

// NewRedisBridge connects to Redis and returns a bridge for hub.
func NewRedisBridge(addr, password string, db int, hub *Hub, logger *utils.Logger) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	return &RedisBridge{
		client:     client,
		hub:        hub,
		instanceID: uuid.New().String(),
		logger:     logger,
	}, nil
}

// Forward publishes ev to the shared channel. Failures are logged and
// dropped; fan-out must never block or fail the committing operation.
func (b *RedisBridge) Forward(ev Event) {
	payload, err := json.Marshal(envelope{Origin: b.instanceID, Event: ev})
	if err != nil {
		b.logger.Error("failed to marshal event: %v", err)
		return
	}

	if err := b.client.Publish(context.Background(), eventChannel, payload).Err(); err != nil {
		b.logger.Error("failed to forward event: %v", err)
	}
}

// Run subscribes to the shared channel and relays remote events into the
// local hub until ctx is canceled.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, eventChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Error("failed to decode event: %v", err)
				continue
			}

			if env.Origin == b.instanceID {
				continue // our own publish, already delivered locally
			}

			b.hub.Deliver(env.Event)
		}
	}
}

// Close releases the Redis connection.
func (b *RedisBridge) Close() error {
	return b.client.Close()
}
