package testkit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/config"
	"github.com/DivyPatel-31/coastwatch/internal/httpserver"
	"github.com/DivyPatel-31/coastwatch/internal/notify"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/gin-gonic/gin"
)

const TestAuthSecret = "01234567890123456789012345678901"

const EventsTopic = "coastal-events"

type Server struct {
	Store     store.Storage
	Hub       *realtime.Hub
	Bus       *realtime.Bus
	Stats     *obs.Stats
	Publisher *RecordingPublisher
	Config    config.Config
	HTTP      *httptest.Server
}

type serverOptions struct {
	gorm      bool
	configure func(*config.Config)
}

type ServerOption func(*serverOptions)

// WithGorm runs the server on the relational backend over sqlite.
func WithGorm() ServerOption { return func(o *serverOptions) { o.gorm = true } }

// WithConfig adjusts the config before the server is built.
func WithConfig(fn func(*config.Config)) ServerOption {
	return func(o *serverOptions) { o.configure = fn }
}

// NewServer starts the full HTTP surface on an in-memory backend with the
// notifier wired in and events forwarded to a recording publisher.
func NewServer(t testing.TB, opts ...ServerOption) *Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := config.Config{
		HTTPAddr:           "127.0.0.1:0",
		AuthSecret:         []byte(TestAuthSecret),
		AuthTokenTTL:       time.Hour,
		WSAllowedOrigins:   []string{"*"},
		RealtimeSendBuffer: 64,
	}
	if o.configure != nil {
		o.configure(&cfg)
	}

	var s store.Storage = store.NewMemory()
	if o.gorm {
		s = store.NewGorm(OpenTestDB(t))
	}

	stats := obs.New()
	hub := realtime.NewHub(nil, stats)
	publisher := &RecordingPublisher{}
	bus := realtime.NewBus(hub, nil, stats, realtime.PublisherSink{Publisher: publisher, Topic: EventsTopic})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()

	srv := httpserver.New(cfg, httpserver.Deps{
		Store:    s,
		Hub:      hub,
		Bus:      bus,
		Notifier: notify.New(s, bus, nil, stats),
		Stats:    stats,
		Version:  "test",
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		cancel()
		<-done
		ts.Close()
	})

	return &Server{
		Store:     s,
		Hub:       hub,
		Bus:       bus,
		Stats:     stats,
		Publisher: publisher,
		Config:    cfg,
		HTTP:      ts,
	}
}

func (s *Server) URL(path string) string { return s.HTTP.URL + path }
