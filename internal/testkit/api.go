package testkit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/auth"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/gorilla/websocket"
)

// ErrorBody is the JSON shape of every non-2xx API response.
type ErrorBody struct {
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func DoJSON(t testing.TB, client *http.Client, method, rawURL string, body any, headers map[string]string) (int, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			rd = strings.NewReader(raw)
		} else {
			buf, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("json.Marshal: %v", err)
			}
			rd = bytes.NewReader(buf)
		}
	}

	req, err := http.NewRequest(method, rawURL, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("client.Do: %v", err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return res.StatusCode, b
}

// Decode unmarshals body into a T or fails the test.
func Decode[T any](t testing.TB, body []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, string(body))
	}
	return v
}

// Token signs a session token for sub the way the identity provider would.
func Token(t testing.TB, sub, email string) string {
	t.Helper()

	c := auth.Claims{Email: email, FirstName: "Test", LastName: sub}
	c.Subject = sub
	token, err := auth.SignToken([]byte(TestAuthSecret), c, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return token
}

func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// Do runs an authenticated JSON request against the server.
func (s *Server) Do(t testing.TB, token, method, path string, body any) (int, []byte) {
	t.Helper()
	return DoJSON(t, s.HTTP.Client(), method, s.URL(path), body, Bearer(token))
}

// DialWS opens the realtime socket for token and waits until the hub has
// registered it.
func (s *Server) DialWS(t testing.TB, token string) *websocket.Conn {
	t.Helper()

	before := s.Hub.ClientCount()
	u := "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/api/ws?token=" + url.QueryEscape(token)
	conn, res, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		status := 0
		if res != nil {
			status = res.StatusCode
		}
		t.Fatalf("dial %s: %v (status=%d)", u, err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub.ClientCount() <= before {
		if time.Now().After(deadline) {
			t.Fatalf("websocket client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

// ReadEvent returns the next event on conn, skipping pong frames.
func ReadEvent(t testing.TB, conn *websocket.Conn, timeout time.Duration) realtime.Event {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		if strings.Contains(string(data), `"type":"pong"`) {
			continue
		}
		e, err := realtime.Decode(data)
		if err != nil {
			t.Fatalf("decode event %s: %v", string(data), err)
		}
		return e
	}
}

// ExpectNoEvent fails if anything but a pong arrives on conn within wait.
func ExpectNoEvent(t testing.TB, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(wait))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if strings.Contains(string(data), `"type":"pong"`) {
			continue
		}
		t.Fatalf("unexpected event: %s", string(data))
	}
}
