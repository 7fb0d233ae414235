package realtime

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultRelayChannel = "coastwatch:events"

type relayMessage struct {
	Origin string          `json:"origin"`
	Event  json.RawMessage `json:"event"`
}

// RedisRelay fans events out across instances over Redis pub/sub. Each
// instance tags what it sends and ignores its own messages, so an event is
// delivered locally exactly once per instance.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	origin  string
	bus     *Bus
	log     *zap.Logger
}

func NewRedisRelay(rdb *redis.Client, channel string, bus *Bus, log *zap.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRelay{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		bus:     bus,
		log:     log,
	}
}

func (r *RedisRelay) String() string { return "realtime-relay" }

func (r *RedisRelay) Forward(ctx context.Context, _ Event, body []byte) error {
	msg, err := json.Marshal(relayMessage{Origin: r.origin, Event: body})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, msg).Err()
}

// Serve subscribes to the relay channel and delivers foreign events until ctx
// is done.
func (r *RedisRelay) Serve(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("relay channel %s closed", r.channel)
			}
			r.handle([]byte(m.Payload))
		}
	}
}

func (r *RedisRelay) handle(payload []byte) {
	var msg relayMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.log.Warn("relay: malformed message", zap.Error(err))
		return
	}
	if msg.Origin == r.origin {
		return
	}
	if err := r.bus.DeliverLocal(msg.Event); err != nil {
		r.log.Warn("relay: undeliverable event", zap.String("origin", msg.Origin), zap.Error(err))
	}
}
