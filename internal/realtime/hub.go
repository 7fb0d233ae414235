package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"go.uber.org/zap"
)

// Hub is the registry of connected clients. Broadcasts are serialized under
// the hub lock, so every client observes events in publish order. A client
// whose send buffer is full is dropped rather than blocking the publisher.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}

	log   *zap.Logger
	stats *obs.Stats
}

func NewHub(log *zap.Logger, stats *obs.Stats) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log,
		stats:   stats,
	}
}

func (h *Hub) String() string { return "realtime-hub" }

// Add registers c. It is a no-op for a client already registered.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	_, exists := h.clients[c]
	if !exists {
		h.clients[c] = struct{}{}
	}
	total := len(h.clients)
	h.mu.Unlock()

	if exists {
		return
	}
	h.stats.ObserveConnect()
	h.log.Debug("realtime client connected",
		zap.Uint64("client_id", c.id),
		zap.String("user_id", c.userID),
		zap.Int("total_clients", total))
}

// Remove unregisters c and closes its send buffer. Removing a client that
// was already dropped is a no-op.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.stats.ObserveDisconnect(false)
	h.log.Debug("realtime client disconnected",
		zap.Uint64("client_id", c.id),
		zap.Int("total_clients", total))
}

// Join records that c subscribed to room. Rooms are bookkeeping only:
// Broadcast still reaches every client.
func (h *Hub) Join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	c.room = room
	return true
}

// Broadcast queues msg to every client and returns how many accepted it.
func (h *Hub) Broadcast(msg []byte) int {
	return h.fanOut(msg, func(*Client) bool { return true })
}

// SendToUser queues msg to the connections of one user.
func (h *Hub) SendToUser(userID string, msg []byte) int {
	return h.fanOut(msg, func(c *Client) bool { return c.userID == userID })
}

func (h *Hub) fanOut(msg []byte, match func(*Client) bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedLocked()
	delivered := 0
	for _, c := range clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- msg:
			delivered++
		default:
			delete(h.clients, c)
			close(c.send)
			h.stats.ObserveDisconnect(true)
			h.log.Warn("realtime client dropped: send buffer full",
				zap.Uint64("client_id", c.id),
				zap.String("user_id", c.userID))
		}
	}
	return delivered
}

func (h *Hub) sortedLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Rooms returns the number of clients per joined room.
func (h *Hub) Rooms() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := map[string]int{}
	for c := range h.clients {
		if c.room != "" {
			out[c.room]++
		}
	}
	return out
}

// Serve blocks until ctx is done, then closes every client.
func (h *Hub) Serve(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.sortedLocked()
	for _, c := range clients {
		delete(h.clients, c)
		close(c.send)
		h.stats.ObserveDisconnect(false)
	}
	h.mu.Unlock()

	h.log.Info("realtime hub stopped", zap.Int("clients_closed", len(clients)))
	return ctx.Err()
}
