package realtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"golang.org/x/time/rate"
)

func newTestClient(h *Hub, userID string, buffer int) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     h,
		send:    make(chan []byte, buffer),
		userID:  userID,
		limiter: rate.NewLimiter(inboundRate, inboundBurst),
		log:     h.log,
	}
}

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestHub_BroadcastPreservesOrder(t *testing.T) {
	t.Parallel()

	h := NewHub(nil, nil)
	a := newTestClient(h, "u1", 16)
	b := newTestClient(h, "u2", 16)
	h.Add(a)
	h.Add(b)

	for i := 0; i < 5; i++ {
		if n := h.Broadcast([]byte(fmt.Sprintf("m%d", i))); n != 2 {
			t.Fatalf("expected 2 deliveries, got %d", n)
		}
	}
	for _, c := range []*Client{a, b} {
		got := drain(c)
		if len(got) != 5 {
			t.Fatalf("expected 5 messages, got %v", got)
		}
		for i, m := range got {
			if m != fmt.Sprintf("m%d", i) {
				t.Fatalf("out of order: %v", got)
			}
		}
	}
}

func TestHub_DropsFullClient(t *testing.T) {
	t.Parallel()

	stats := obs.New()
	h := NewHub(nil, stats)
	slow := newTestClient(h, "u1", 1)
	fast := newTestClient(h, "u2", 8)
	h.Add(slow)
	h.Add(fast)

	h.Broadcast([]byte("one"))
	if n := h.Broadcast([]byte("two")); n != 1 {
		t.Fatalf("expected 1 delivery after slow client filled, got %d", n)
	}
	if h.ClientCount() != 1 {
		t.Fatalf("expected slow client removed, count=%d", h.ClientCount())
	}
	// The dropped client's buffer is closed after the queued message.
	if got := drain(slow); len(got) != 1 || got[0] != "one" {
		t.Fatalf("unexpected slow client messages: %v", got)
	}
	if _, ok := <-slow.send; ok {
		t.Fatalf("expected closed send channel")
	}
	// Removing an already dropped client must not panic on a double close.
	h.Remove(slow)

	snap := stats.Snapshot()
	if snap.Realtime.Dropped != 1 || snap.Realtime.Connected != 1 {
		t.Fatalf("unexpected realtime stats: %+v", snap.Realtime)
	}
}

func TestHub_SendToUser(t *testing.T) {
	t.Parallel()

	h := NewHub(nil, nil)
	owner1 := newTestClient(h, "owner", 4)
	owner2 := newTestClient(h, "owner", 4)
	other := newTestClient(h, "other", 4)
	h.Add(owner1)
	h.Add(owner2)
	h.Add(other)

	if n := h.SendToUser("owner", []byte("private")); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if len(drain(other)) != 0 {
		t.Fatalf("other user must not receive private messages")
	}
}

func TestHub_JoinRecordsRoomsWithoutScoping(t *testing.T) {
	t.Parallel()

	h := NewHub(nil, nil)
	gov := newTestClient(h, "u1", 4)
	fisher := newTestClient(h, "u2", 4)
	stranger := newTestClient(h, "u3", 4)
	h.Add(gov)
	h.Add(fisher)

	h.Join(gov, "government")
	h.Join(fisher, "fisherfolk")
	if h.Join(stranger, "ngo") {
		t.Fatalf("unregistered client must not join")
	}
	rooms := h.Rooms()
	if rooms["government"] != 1 || rooms["fisherfolk"] != 1 || len(rooms) != 2 {
		t.Fatalf("unexpected rooms: %v", rooms)
	}
	if n := h.Broadcast([]byte("all")); n != 2 {
		t.Fatalf("broadcast should reach every room, got %d", n)
	}
}

func TestHub_ServeClosesClients(t *testing.T) {
	t.Parallel()

	h := NewHub(nil, nil)
	c := newTestClient(h, "u1", 4)
	h.Add(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatalf("Serve did not return")
	}
	if h.ClientCount() != 0 {
		t.Fatalf("expected no clients after shutdown")
	}
	if _, ok := <-c.send; ok {
		t.Fatalf("expected closed send channel")
	}
}
