package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startServer(t *testing.T, h *Hub, userID string) *httptest.Server {
	t.Helper()

	up := NewUpgrader([]string{"*"})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(h, conn, userID, 16).Start()
	}))
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if res != nil && res.Body != nil {
		defer res.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_JoinPingAndReceive(t *testing.T) {
	t.Parallel()

	h := NewHub(nil, nil)
	conn := dial(t, startServer(t, h, "u1"))
	waitFor(t, func() bool { return h.ClientCount() == 1 }, "client registered")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join-room","payload":"government"}`)); err != nil {
		t.Fatalf("write join: %v", err)
	}
	waitFor(t, func() bool { return h.Rooms()["government"] == 1 }, "room joined")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil || string(msg) != `{"type":"pong"}` {
		t.Fatalf("expected pong, got %q err=%v", msg, err)
	}

	h.Broadcast([]byte(`{"type":"alert-resolved","payload":"a1"}`))
	_, msg, err = conn.ReadMessage()
	if err != nil || !strings.Contains(string(msg), "alert-resolved") {
		t.Fatalf("expected event, got %q err=%v", msg, err)
	}
}

func TestClient_DisconnectRemoves(t *testing.T) {
	t.Parallel()

	h := NewHub(nil, nil)
	conn := dial(t, startServer(t, h, "u1"))
	waitFor(t, func() bool { return h.ClientCount() == 1 }, "client registered")

	_ = conn.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 }, "client removed")
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	t.Parallel()

	up := NewUpgrader([]string{"https://dashboard.example.org/"})
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://dashboard.example.org", true},
		{"https://DASHBOARD.example.org", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := up.CheckOrigin(r); got != tc.want {
			t.Fatalf("origin %q: expected %v, got %v", tc.origin, tc.want, got)
		}
	}
}
