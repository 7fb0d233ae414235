package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/auth"
	"github.com/DivyPatel-31/coastwatch/internal/metrics"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

func TestParseTime(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-01-02", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"2025-01-02T03:04:05Z", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"2025-01-02T03:04:05.5+02:00", time.Date(2025, 1, 2, 1, 4, 5, 500_000_000, time.UTC), true},
		{"2025-01-02T03:04:05", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
		{"  ", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := parseTime(tc.in)
		if ok != tc.ok || !got.Equal(tc.want) {
			t.Fatalf("parseTime(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseLimit(t *testing.T) {
	t.Parallel()

	if got := parseLimit("", 7, 90); got != 7 {
		t.Fatalf("expected default, got %d", got)
	}
	if got := parseLimit("-3", 7, 90); got != 7 {
		t.Fatalf("expected default for negative, got %d", got)
	}
	if got := parseLimit("365", 7, 90); got != 90 {
		t.Fatalf("expected clamp to 90, got %d", got)
	}
	if got := parseLimit("30", 7, 90); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
}

func TestUserFromClaims(t *testing.T) {
	t.Parallel()

	c := auth.Claims{Email: "  ", FirstName: " Ana "}
	c.Subject = "sub-1"
	u := UserFromClaims(c)
	if u.ID != "sub-1" || u.FirstName != "Ana" || u.Email != nil || u.Role != "" {
		t.Fatalf("unexpected user: %+v", u)
	}

	c.Email = "ana@example.com"
	if u := UserFromClaims(c); u.Email == nil || *u.Email != "ana@example.com" {
		t.Fatalf("expected email, got %+v", u.Email)
	}
}

func TestList_NeverNil(t *testing.T) {
	t.Parallel()

	var rows []int
	if got := list(rows); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestActivityHandler_ReportsTotals(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb, err := metrics.NewRedisClient(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	rec := metrics.NewRedisRecorder(rdb)

	ctx := context.Background()
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	for _, ts := range []time.Time{yesterday, time.Now()} {
		if err := rec.ObserveEvent(ctx, string(realtime.KindNewAlert), ts); err != nil {
			t.Fatalf("ObserveEvent: %v", err)
		}
	}

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/analytics/activity", nil)
	ActivityHandler(rec)(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Enabled bool             `json:"enabled"`
		Events  map[string]int64 `json:"events"`
		Totals  map[string]int64 `json:"totals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Enabled || got.Events["new-alert"] != 1 || got.Totals["new-alert"] != 2 || got.Totals["new-report"] != 0 {
		t.Fatalf("unexpected activity: %s", w.Body.String())
	}
}
