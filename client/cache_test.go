package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/realtime"
)

type countingAPI struct {
	mu   sync.Mutex
	hits map[string]int
}

func (a *countingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.hits[r.URL.Path]++
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case PathUser:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthorized"}`))
	case PathReports:
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Invalid input","errors":[{"field":"title","message":"is required"}]}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	default:
		_, _ = w.Write([]byte(`[]`))
	}
}

func (a *countingAPI) count(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[path]
}

func newTestCache(t *testing.T) (*Cache, *countingAPI) {
	t.Helper()
	api := &countingAPI{hits: map[string]int{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/", Token: "t"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return NewCache(c), api
}

func TestFamilies(t *testing.T) {
	t.Parallel()

	cases := map[string]Family{
		PathAlerts:                FamilyAlerts,
		PathActiveAlerts:          FamilyActiveAlerts,
		PathSensors:               FamilySensors,
		SensorReadingsPath("s-1"): FamilySensors,
		PathStats:                 FamilyAnalytics,
		PathThreatDistribution:    FamilyAnalytics,
		PathReports:               FamilyReports,
		PathMyReports:             FamilyReports,
		PathNotifications:         FamilyNotifications,
		PathUser:                  FamilyUser,
		"/api/status":             "",
		"/api/alertsx":            "",
	}
	for path, want := range cases {
		if got := FamilyOf(path); got != want {
			t.Fatalf("FamilyOf(%q) = %q, want %q", path, got, want)
		}
	}

	if got := FamiliesFor(realtime.KindAlertResolved); len(got) != 2 || got[0] != FamilyAlerts || got[1] != FamilyActiveAlerts {
		t.Fatalf("unexpected families for alert-resolved: %v", got)
	}
	if got := FamiliesFor(realtime.KindSensorReading); len(got) != 2 || got[0] != FamilySensors || got[1] != FamilyAnalytics {
		t.Fatalf("unexpected families for sensor-reading: %v", got)
	}
	for _, k := range realtime.Kinds() {
		if len(FamiliesFor(k)) == 0 {
			t.Fatalf("kind %s invalidates nothing", k)
		}
	}
}

func TestKey_SortsQuery(t *testing.T) {
	t.Parallel()

	a := Key("/p", url.Values{"to": {"2"}, "from": {"1"}})
	b := Key("/p", url.Values{"from": {"1"}, "to": {"2"}})
	if a != b || a != "/p?from=1&to=2" {
		t.Fatalf("unexpected keys %q %q", a, b)
	}
	if Key("/p", nil) != "/p" {
		t.Fatalf("expected bare path")
	}
}

func TestCache_GetServesFromCache(t *testing.T) {
	t.Parallel()

	c, api := newTestCache(t)
	ctx := context.Background()
	for range 3 {
		if _, err := c.Alerts(ctx); err != nil {
			t.Fatalf("Alerts: %v", err)
		}
	}
	if api.count(PathAlerts) != 1 {
		t.Fatalf("expected one fetch, got %d", api.count(PathAlerts))
	}

	q1 := url.Values{"from": {"2025-01-01"}}
	q2 := url.Values{"from": {"2025-01-02"}}
	var out []any
	if err := c.Get(ctx, SensorReadingsPath("s"), q1, &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := c.Get(ctx, SensorReadingsPath("s"), q2, &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if api.count(SensorReadingsPath("s")) != 2 {
		t.Fatalf("expected distinct entries per query, got %d fetches", api.count(SensorReadingsPath("s")))
	}
}

func TestCache_InvalidateRefetchesWatchedOnly(t *testing.T) {
	t.Parallel()

	c, api := newTestCache(t)
	ctx := context.Background()
	var refreshed []string
	c.OnRefresh = func(key string) { refreshed = append(refreshed, key) }

	if _, err := c.Alerts(ctx); err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if _, err := c.ActiveAlerts(ctx); err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if _, err := c.Reports(ctx); err != nil {
		t.Fatalf("Reports: %v", err)
	}
	unwatch := c.Watch(PathActiveAlerts, nil)

	if err := c.Apply(ctx, realtime.NewAlert{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if api.count(PathActiveAlerts) != 2 {
		t.Fatalf("watched entry should be refetched, got %d fetches", api.count(PathActiveAlerts))
	}
	if api.count(PathAlerts) != 1 {
		t.Fatalf("unwatched entry should not be refetched yet, got %d fetches", api.count(PathAlerts))
	}
	if !c.Stale(PathAlerts, nil) || c.Stale(PathActiveAlerts, nil) {
		t.Fatalf("unexpected staleness")
	}
	if c.Stale(PathReports, nil) {
		t.Fatalf("reports are not in the alert families")
	}
	if len(refreshed) != 1 || refreshed[0] != PathActiveAlerts {
		t.Fatalf("unexpected refresh callbacks %v", refreshed)
	}

	// Next display refetches the stale entry.
	if _, err := c.Alerts(ctx); err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if api.count(PathAlerts) != 2 {
		t.Fatalf("stale entry should refetch on Get, got %d", api.count(PathAlerts))
	}

	unwatch()
	unwatch()
	if err := c.Invalidate(ctx, FamilyActiveAlerts); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if api.count(PathActiveAlerts) != 2 {
		t.Fatalf("unwatched entry refetched: %d", api.count(PathActiveAlerts))
	}
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, err := c.CurrentUser(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	_, err := c.CreateReport(ctx, ReportInput{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || len(apiErr.Errors) != 1 || apiErr.Errors[0].Field != "title" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if IsNotFound(err) {
		t.Fatalf("400 is not a not-found")
	}

	if _, err := New(Options{BaseURL: "  "}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestWSURL(t *testing.T) {
	t.Parallel()

	got, err := wsURL("https://example.com/base/", "abc")
	if err != nil {
		t.Fatalf("wsURL: %v", err)
	}
	if got != "wss://example.com/base/api/ws?token=abc" {
		t.Fatalf("unexpected url %q", got)
	}
	got, _ = wsURL("http://127.0.0.1:8080", "")
	if got != "ws://127.0.0.1:8080/api/ws" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestCache_InvalidateDuringFetchKeepsEntryStale(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":"a-1","isActive":true}]`))
	}))
	t.Cleanup(srv.Close)

	cl, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := NewCache(cl)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := c.Alerts(ctx)
		first <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first fetch never reached the server")
	}
	if err := c.Invalidate(ctx, FamilyAlerts); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	close(release)
	if err := <-first; err != nil {
		t.Fatalf("Alerts: %v", err)
	}

	if !c.Stale(PathAlerts, nil) {
		t.Fatalf("invalidation during an in-flight fetch was lost")
	}
	alerts, err := c.Alerts(ctx)
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != "a-1" {
		t.Fatalf("expected refetched alerts, got %+v", alerts)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 server calls, got %d", calls.Load())
	}
	if c.Stale(PathAlerts, nil) {
		t.Fatalf("entry should be fresh after refetch")
	}
}
