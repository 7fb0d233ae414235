package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const DefaultReconnectInterval = 5 * time.Second

type SubscriberOptions struct {
	// Role is the room joined after every connect.
	Role model.Role
	// ReconnectInterval is the fixed wait between attempts.
	ReconnectInterval time.Duration
	Dialer            *websocket.Dialer
	Log               *zap.Logger
	// OnEvent sees every decoded event after the cache was invalidated.
	OnEvent func(realtime.Event)
	// OnConnect is called after each successful dial and room join.
	OnConnect func()
}

// Subscriber holds a realtime connection for a Cache. It reconnects forever
// after a fixed interval; the interval never grows.
type Subscriber struct {
	cache *Cache
	opts  SubscriberOptions
	log   *zap.Logger
}

func NewSubscriber(cache *Cache, opts SubscriberOptions) *Subscriber {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{cache: cache, opts: opts, log: log}
}

func (s *Subscriber) String() string { return "realtime-subscriber" }

// Serve runs until ctx is done.
func (s *Subscriber) Serve(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Info("realtime disconnected", zap.Error(err), zap.Duration("retry_in", s.opts.ReconnectInterval))

		t := time.NewTimer(s.opts.ReconnectInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Subscriber) session(ctx context.Context) error {
	target, err := wsURL(s.cache.client.BaseURL(), s.cache.client.Token())
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("User-Agent", SDKName+"/"+SDKVersion)

	conn, res, err := s.opts.Dialer.DialContext(ctx, target, header)
	if err != nil {
		if res != nil && res.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if s.opts.Role != "" {
		join, err := json.Marshal(map[string]any{"type": realtime.MessageJoinRoom, "payload": string(s.opts.Role)})
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
			return fmt.Errorf("join room: %w", err)
		}
	}
	if s.opts.OnConnect != nil {
		s.opts.OnConnect()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		e, err := realtime.Decode(data)
		if err != nil {
			if !errors.Is(err, realtime.ErrUnknownKind) {
				s.log.Debug("realtime message ignored", zap.Error(err))
			}
			continue
		}
		if err := s.cache.Apply(ctx, e); err != nil {
			s.log.Warn("cache refresh failed", zap.String("kind", string(e.Kind())), zap.Error(err))
		}
		if s.opts.OnEvent != nil {
			s.opts.OnEvent(e)
		}
	}
}

func wsURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
