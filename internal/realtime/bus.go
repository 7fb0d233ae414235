package realtime

import (
	"context"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/queue"
	"go.uber.org/zap"
)

// Sink receives every event published on this instance after local delivery.
type Sink interface {
	Forward(ctx context.Context, e Event, body []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event, body []byte) error

func (f SinkFunc) Forward(ctx context.Context, e Event, body []byte) error { return f(ctx, e, body) }

// Publisher is the publishing side of Bus.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// DefaultSinkTimeout bounds each sink forward so a slow broker cannot hold up
// the request that published.
const DefaultSinkTimeout = 500 * time.Millisecond

// Bus is what handlers publish to. Publishing never fails the caller: the
// event is delivered to local clients and forwarded to sinks, and any
// failure is logged and counted.
type Bus struct {
	hub   *Hub
	sinks []Sink
	log   *zap.Logger
	stats *obs.Stats

	sinkTimeout time.Duration
}

func NewBus(hub *Hub, log *zap.Logger, stats *obs.Stats, sinks ...Sink) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{hub: hub, sinks: sinks, log: log, stats: stats, sinkTimeout: DefaultSinkTimeout}
}

// SetSinkTimeout must be called before the bus is shared. Zero or negative
// restores the default.
func (b *Bus) SetSinkTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultSinkTimeout
	}
	b.sinkTimeout = d
}

// AddSink must be called before the bus is shared.
func (b *Bus) AddSink(s Sink) {
	if s != nil {
		b.sinks = append(b.sinks, s)
	}
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil || e == nil {
		return
	}
	body, err := Encode(e)
	if err != nil {
		b.log.Error("encode realtime event", zap.String("kind", string(e.Kind())), zap.Error(err))
		return
	}
	delivered := b.deliver(e, body)
	b.stats.ObservePublish(delivered)

	for _, s := range b.sinks {
		err := b.forward(ctx, s, e, body)
		b.stats.ObserveSinkForward(err)
		if err != nil {
			b.log.Warn("forward realtime event",
				zap.String("kind", string(e.Kind())),
				zap.String("id", EntityID(e)),
				zap.Error(err))
		}
	}
}

func (b *Bus) forward(ctx context.Context, s Sink, e Event, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
	defer cancel()
	return s.Forward(ctx, e, body)
}

// DeliverLocal hands an event received from another instance to local
// clients only.
func (b *Bus) DeliverLocal(body []byte) error {
	e, err := Decode(body)
	if err != nil {
		return err
	}
	b.stats.ObservePublish(b.deliver(e, body))
	return nil
}

func (b *Bus) deliver(e Event, body []byte) int {
	if b.hub == nil {
		return 0
	}
	if n, ok := e.(Notification); ok {
		return b.hub.SendToUser(n.Notification.UserID, body)
	}
	return b.hub.Broadcast(body)
}

// PublisherSink streams encoded events to a broker topic.
type PublisherSink struct {
	Publisher queue.Publisher
	Topic     string
}

func (s PublisherSink) Forward(_ context.Context, _ Event, body []byte) error {
	return s.Publisher.Publish(s.Topic, body)
}
