package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/client"
	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/DivyPatel-31/coastwatch/internal/testkit"
	"github.com/gorilla/websocket"
)

func newCache(t *testing.T, srv *testkit.Server, sub string) *client.Cache {
	t.Helper()
	c, err := client.New(client.Options{
		BaseURL:    srv.HTTP.URL,
		Token:      testkit.Token(t, sub, sub+"@example.com"),
		HTTPClient: srv.HTTP.Client(),
	})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return client.NewCache(c)
}

func TestSubscriber_RefreshesWatchedQueries(t *testing.T) {
	t.Parallel()

	srv := testkit.NewServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := newCache(t, srv, "alice")
	bob := newCache(t, srv, "bob")

	if _, err := bob.UpdateRole(ctx, model.RoleGovernment); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	active, err := bob.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no alerts, got %d", len(active))
	}
	defer bob.Watch(client.PathActiveAlerts, nil)()

	events := make(chan realtime.Event, 16)
	connected := make(chan struct{}, 1)
	sub := client.NewSubscriber(bob, client.SubscriberOptions{
		Role:      model.RoleGovernment,
		OnEvent:   func(e realtime.Event) { events <- e },
		OnConnect: func() { connected <- struct{}{} },
	})
	done := make(chan error, 1)
	go func() { done <- sub.Serve(ctx) }()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber did not connect")
	}
	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("hub never registered the subscriber")
		}
		time.Sleep(5 * time.Millisecond)
	}

	created, err := alice.CreateAlert(ctx, client.AlertInput{
		Type:     model.AlertStormSurge,
		Severity: model.SeverityHigh,
		Title:    "Surge warning",
		Location: "Harbour",
	})
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}

	waitFor := func(kind realtime.Kind) realtime.Event {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case e := <-events:
				if e.Kind() == kind {
					return e
				}
			case <-timeout:
				t.Fatalf("no %s event", kind)
			}
		}
	}
	e := waitFor(realtime.KindNewAlert)
	if realtime.EntityID(e) != created.ID {
		t.Fatalf("unexpected alert id %s", realtime.EntityID(e))
	}
	if bob.Stale(client.PathActiveAlerts, nil) {
		t.Fatalf("watched query should have been refetched before the event callback")
	}
	active, err = bob.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(active) != 1 || active[0].ID != created.ID {
		t.Fatalf("unexpected active alerts %+v", active)
	}

	if err := alice.ResolveAlert(ctx, created.ID); err != nil {
		t.Fatalf("ResolveAlert: %v", err)
	}
	waitFor(realtime.KindAlertResolved)
	active, err = bob.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("resolved alert still active: %+v", active)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber did not stop")
	}
}

func TestCache_MutationsInvalidateFamilies(t *testing.T) {
	t.Parallel()

	srv := testkit.NewServer(t)
	ctx := context.Background()
	c := newCache(t, srv, "carol")

	mine, err := c.MyReports(ctx)
	if err != nil || len(mine) != 0 {
		t.Fatalf("MyReports: %v %d", err, len(mine))
	}
	if _, err := c.CreateReport(ctx, client.ReportInput{
		Type:        model.ReportPollution,
		Title:       "Oil sheen",
		Description: "Visible sheen near the jetty",
		Location:    "North jetty",
	}); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if !c.Stale(client.PathMyReports, nil) {
		t.Fatalf("creating a report should invalidate my reports")
	}
	mine, err = c.MyReports(ctx)
	if err != nil || len(mine) != 1 {
		t.Fatalf("MyReports after create: %v %d", err, len(mine))
	}

	if err := c.MarkNotificationRead(ctx, "missing"); !client.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubscriber_ReconnectsAtFixedInterval(t *testing.T) {
	t.Parallel()

	var dials atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	t.Cleanup(ts.Close)

	c, err := client.New(client.Options{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	sub := client.NewSubscriber(client.NewCache(c), client.SubscriberOptions{ReconnectInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Serve(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for dials.Load() < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated reconnects, got %d dials", dials.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
