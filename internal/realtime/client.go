package realtime

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024

	// Inbound message budget per connection.
	inboundRate  = rate.Limit(5)
	inboundBurst = 10

	maxRoomLen = 64
)

// Inbound message types.
const (
	MessageJoinRoom = "join-room"
	MessagePing     = "ping"
	MessagePong     = "pong"
)

var clientIDCounter atomic.Uint64

// Client is one websocket connection owned by the hub.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	// room is guarded by hub.mu.
	room    string
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient wraps conn for userID with a send buffer of the given size.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, buffer),
		userID:  userID,
		limiter: rate.NewLimiter(inboundRate, inboundBurst),
		log:     hub.log,
	}
}

func (c *Client) ID() uint64 { return c.id }

func (c *Client) UserID() string { return c.userID }

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Start registers the client and runs its pumps until the connection ends.
func (c *Client) Start() {
	c.hub.Add(c)
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Debug("realtime read failed", zap.Uint64("client_id", c.id), zap.Error(err))
			}
			return
		}
		if !c.limiter.Allow() {
			c.hub.stats.ObserveThrottled()
			continue
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	switch msg.Type {
	case MessageJoinRoom:
		var room string
		if err := json.Unmarshal(msg.Payload, &room); err != nil {
			return
		}
		room = strings.TrimSpace(room)
		if room == "" || len(room) > maxRoomLen {
			return
		}
		c.hub.Join(c, room)
	case MessagePing:
		c.enqueue([]byte(`{"type":"pong"}`))
	}
}

// enqueue replies to this client only; it never blocks and gives up if the
// client was dropped concurrently.
func (c *Client) enqueue(msg []byte) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// NewUpgrader accepts connections whose Origin is listed, any origin when the
// list holds "*", and requests without an Origin header (non-browser clients).
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	return &websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			_, ok := allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
			return ok
		},
	}
}
