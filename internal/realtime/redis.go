package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const busChannel = "clinic:realtime"

// RedisBridge fans broadcast events out across instances via Redis Pub/Sub.
// Local emissions are published to the shared channel; events received from
// the channel are replayed into the local hub. Each instance tags its
// messages so it does not re-deliver its own.
type RedisBridge struct {
	hub      *Hub
	client   *redis.Client
	instance string
	cancel   context.CancelFunc
	log      zerolog.Logger
}

type busMessage struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRedisBridge connects the hub to the shared Redis channel and starts the
// relay loop.
func NewRedisBridge(hub *Hub, client *redis.Client, instance string, log zerolog.Logger) *RedisBridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBridge{hub: hub, client: client, instance: instance, cancel: cancel, log: log}
	go b.receive(ctx)
	return b
}

// Emit broadcasts locally and publishes to the shared channel.
func (b *RedisBridge) Emit(event string, payload any) {
	b.hub.Emit(event, payload)
	b.publish("", event, payload)
}

// EmitToRoom broadcasts to the local room and publishes to the shared channel.
func (b *RedisBridge) EmitToRoom(room, event string, payload any) {
	b.hub.EmitToRoom(room, event, payload)
	b.publish(room, event, payload)
}

// Close stops the relay loop.
func (b *RedisBridge) Close() {
	b.cancel()
}

func (b *RedisBridge) publish(room, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn().Err(err).Str("event", event).Msg("realtime: failed to marshal bus payload")
		return
	}
	data, err := json.Marshal(busMessage{Origin: b.instance, Room: room, Event: event, Payload: raw})
	if err != nil {
		b.log.Warn().Err(err).Str("event", event).Msg("realtime: failed to marshal bus message")
		return
	}
	if err := b.client.Publish(context.Background(), busChannel, data).Err(); err != nil {
		b.log.Warn().Err(err).Str("event", event).Msg("realtime: failed to publish bus message")
	}
}

func (b *RedisBridge) receive(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, busChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var bm busMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				b.log.Warn().Err(err).Msg("realtime: malformed bus message")
				continue
			}
			if bm.Origin == b.instance {
				continue
			}
			if bm.Room != "" {
				b.hub.EmitToRoom(bm.Room, bm.Event, bm.Payload)
			} else {
				b.hub.Emit(bm.Event, bm.Payload)
			}
		}
	}
}
