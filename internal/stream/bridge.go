// internal/stream/bridge.go
package stream

import (
	"context"
	"encoding/json"
	"time"

	"cityreport-notifications/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the shared Pub/Sub channel for cross-instance row events.
const DefaultChannel = "cityreport:notifications:rows"

// envelope is the message shape stored in Redis Pub/Sub. It wraps the
// recipient-scoped RowEvent so every instance can fan it back into its local
// Hub.
type envelope struct {
	RecipientID string    `json:"recipient_id"`
	Event       RowEvent  `json:"event"`
	SentAt      time.Time `json:"sent_at"`
}

// Bridge connects the local in-process Hub with a Redis Pub/Sub channel so
// that a row event persisted on any instance reaches sessions connected to
// every instance. With a nil client the bridge degrades to single-instance
// mode and publishes straight to the local Hub.
type Bridge struct {
	// client must be a *redis.Client: redis.Cmdable does not declare Subscribe.
	client  *redis.Client
	channel string
	hub     *Hub
	logger  logger.Logger
	cancel  context.CancelFunc
}

func NewBridge(client *redis.Client, channel string, hub *Hub, log logger.Logger) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bridge{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  log.WithFields(map[string]interface{}{"component": "stream-bridge"}),
	}
}

// Hub returns the local hub sessions subscribe to.
func (b *Bridge) Hub() *Hub {
	return b.hub
}

// Start launches the subscriber loop. It is a no-op in single-instance mode.
func (b *Bridge) Start(ctx context.Context) {
	if b.client == nil {
		b.logger.Info("redis absent, running stream in single-instance mode", nil)
		return
	}

	ctx, b.cancel = context.WithCancel(ctx)
	go b.runSubscriber(ctx)
	b.logger.Info("stream bridge started", map[string]interface{}{"channel": b.channel})
}

// Stop terminates the subscriber loop.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Publish dispatches a row event for one recipient.
//   - Single-instance mode: writes directly to the local Hub.
//   - Bridged mode: publishes to Redis so every instance replays the event
//     into its own Hub, this one included.
func (b *Bridge) Publish(recipientID string, ev RowEvent) {
	if recipientID == "" {
		return
	}

	if b.client == nil {
		b.hub.Publish(recipientID, ev)
		return
	}

	payload, err := json.Marshal(envelope{
		RecipientID: recipientID,
		Event:       ev,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		b.logger.WithError(err).Error("marshal row event failed", map[string]interface{}{
			"recipientId": recipientID,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.WithError(err).Warn("redis publish failed, falling back to local hub", map[string]interface{}{
			"recipientId": recipientID,
		})
		b.hub.Publish(recipientID, ev)
	}
}

func (b *Bridge) runSubscriber(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
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
				b.logger.WithError(err).Warn("drop malformed stream payload", nil)
				continue
			}
			b.hub.Publish(env.RecipientID, env.Event)
		}
	}
}
