package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bellhop-dev/bellhop/internal/wire"
	"github.com/bellhop-dev/bellhop/internal/xslog"
	go_json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const eventChannelPrefix = "bellhop:events:"

// bridgeFrame wraps an encoded wire event for transit between hub
// instances. Origin carries the publishing instance's id so a hub never
// re-delivers its own broadcast.
type bridgeFrame struct {
	Origin string             `json:"origin"`
	Kind   wire.MessageType   `json:"kind"`
	Data   go_json.RawMessage `json:"data"`
}

var _ Bridge = (*RedisBridge)(nil)

// RedisBridge fans published events out across hub instances over redis
// pub/sub. Each instance publishes on bellhop:events:<userId> and
// subscribes to the whole pattern, delivering foreign events to its own
// registry. Lost bridge messages are acceptable: clients behind the other
// instance converge on their next reconciliation fetch.
type RedisBridge struct {
	client     *redis.Client
	instanceID string
	logger     *slog.Logger
}

func NewRedisBridge(client *redis.Client, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{
		client:     client,
		instanceID: uuid.New().String(),
		logger:     logger,
	}
}

func (b *RedisBridge) Broadcast(ctx context.Context, userID string, kind wire.MessageType, data []byte) error {
	frame, err := go_json.Marshal(bridgeFrame{
		Origin: b.instanceID,
		Kind:   kind,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal bridge frame: %w", err)
	}

	if err := b.client.Publish(ctx, eventChannelPrefix+userID, frame).Err(); err != nil {
		return fmt.Errorf("failed to publish bridge frame: %w", err)
	}
	return nil
}

// Run subscribes to the event pattern and feeds foreign events into the
// hub's local fan-out until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context, h *Hub) error {
	pubsub := b.client.PSubscribe(ctx, eventChannelPrefix+"*")
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			userID := strings.TrimPrefix(msg.Channel, eventChannelPrefix)

			var frame bridgeFrame
			if err := go_json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				b.logger.Warn("malformed bridge frame",
					xslog.UserID(userID),
					xslog.Error(err),
				)
				continue
			}
			if frame.Origin == b.instanceID {
				continue
			}

			h.fanOut(userID, frame.Kind, frame.Data)
		}
	}
}
