package realtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type instance struct {
	hub    *Hub
	bus    *Bus
	relay  *RedisRelay
	client *Client
}

func newInstance(t *testing.T, addr string) instance {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewHub(nil, nil)
	bus := NewBus(h, nil, nil)
	relay := NewRedisRelay(rdb, "", bus, nil)
	bus.AddSink(relay)
	c := newTestClient(h, "u1", 16)
	h.Add(c)
	return instance{hub: h, bus: bus, relay: relay, client: c}
}

func TestRedisRelay_FansOutAcrossInstances(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	a := newInstance(t, mr.Addr())
	b := newInstance(t, mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = a.relay.Serve(ctx) }()
	go func() { _ = b.relay.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for mr.PubSubNumSub(DefaultRelayChannel)[DefaultRelayChannel] < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("relays did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	a.bus.Publish(ctx, NewAlert{Alert: model.Alert{ID: "a1", IsActive: true}})

	select {
	case msg := <-b.client.send:
		if !strings.Contains(string(msg), `"id":"a1"`) {
			t.Fatalf("unexpected relayed message: %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("remote instance did not receive event")
	}

	// The origin instance delivers once locally and ignores its own echo.
	time.Sleep(50 * time.Millisecond)
	if got := drain(a.client); len(got) != 1 {
		t.Fatalf("expected exactly one local delivery, got %d", len(got))
	}
}

func TestRedisRelay_IgnoresMalformed(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	inst := newInstance(t, mr.Addr())
	inst.relay.handle([]byte("garbage"))
	inst.relay.handle([]byte(`{"origin":"other","event":{"type":"bogus"}}`))
	if len(drain(inst.client)) != 0 {
		t.Fatalf("malformed relay messages must be dropped")
	}
}
