package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeServer struct {
	stop     chan struct{}
	listenFn func() error
	shutdown atomic.Int32
}

func newFakeServer() *fakeServer { return &fakeServer{stop: make(chan struct{})} }

func (f *fakeServer) ListenAndServe() error {
	if f.listenFn != nil {
		return f.listenFn()
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	if f.shutdown.Add(1) == 1 {
		close(f.stop)
	}
	return nil
}

func TestHTTPService_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	svc := NewHTTPService(srv, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("service did not stop")
	}
	if srv.shutdown.Load() != 1 {
		t.Fatalf("expected one shutdown, got %d", srv.shutdown.Load())
	}
	if svc.String() != "http-server" {
		t.Fatalf("unexpected name %q", svc.String())
	}
}

func TestHTTPService_ListenError(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	srv.listenFn = func() error { return errors.New("address in use") }
	err := NewHTTPService(srv, 0).Serve(context.Background())
	if err == nil || err.Error() != "http server: address in use" {
		t.Fatalf("unexpected error: %v", err)
	}
}

type stubService struct {
	started chan struct{}
	stopped atomic.Bool
}

func (s *stubService) Serve(ctx context.Context) error {
	close(s.started)
	<-ctx.Done()
	s.stopped.Store(true)
	return ctx.Err()
}

func TestTree_StartsAndStopsEveryLayer(t *testing.T) {
	t.Parallel()

	tree := NewTree(zap.NewNop(), TreeConfig{})
	services := []*stubService{
		{started: make(chan struct{})},
		{started: make(chan struct{})},
		{started: make(chan struct{})},
	}
	tree.AddIngest(services[0])
	tree.AddRealtime(services[1])
	tree.AddAPI(services[2])

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	for i, s := range services {
		select {
		case <-s.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("service %d did not start", i)
		}
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatalf("tree did not stop")
	}
	for i, s := range services {
		if !s.stopped.Load() {
			t.Fatalf("service %d was not stopped", i)
		}
	}
}

func TestEventHook_LogsPanicsAsErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	hook := EventHook(zap.New(core))
	hook(suture.EventServicePanic{
		SupervisorName: "ingest",
		ServiceName:    "nsq-readings",
		PanicMsg:       "boom",
	})
	hook(suture.EventBackoff{SupervisorName: "ingest"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected panic at error level, got %v", entries[0].Level)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("expected backoff at warn level, got %v", entries[1].Level)
	}
}
