package metrics

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestNewRedisClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisClient("", "", 0); err == nil {
		t.Fatalf("expected error for empty addr")
	}

	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func newRecorder(t *testing.T) (*RedisRecorder, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRecorder(rdb), mr
}

func TestRedisRecorder_TodayAndTotals(t *testing.T) {
	t.Parallel()

	rec, mr := newRecorder(t)
	ctx := context.Background()
	kinds := []string{"new-alert", "sensor-reading"}

	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)

	for _, ts := range []time.Time{now, now, yesterday} {
		if err := rec.ObserveEvent(ctx, "new-alert", ts); err != nil {
			t.Fatalf("ObserveEvent: %v", err)
		}
	}
	_ = rec.ObserveReading(ctx, "sensor-1", now)
	_ = rec.ObserveReading(ctx, "sensor-1", now)
	_ = rec.ObserveReading(ctx, "sensor-2", now)

	act, ok, err := rec.Today(ctx, now, kinds)
	if err != nil || !ok {
		t.Fatalf("Today: ok=%v err=%v", ok, err)
	}
	if act.Date != "2025-01-02" || act.Events["new-alert"] != 2 || act.Events["sensor-reading"] != 0 {
		t.Fatalf("unexpected events: %+v", act)
	}
	if act.Readings != 3 || act.ActiveSensors != 2 {
		t.Fatalf("expected readings=3 activeSensors=2, got %+v", act)
	}

	totals, err := rec.EventTotals(ctx, kinds)
	if err != nil || totals["new-alert"] != 3 {
		t.Fatalf("EventTotals: %v err=%v", totals, err)
	}

	if ttl := mr.TTL("activity:events:new-alert:2025-01-02"); ttl <= 0 {
		t.Fatalf("expected daily key to expire, ttl=%v", ttl)
	}
	if ttl := mr.TTL("activity:events:new-alert:total"); ttl != 0 {
		t.Fatalf("expected total key to persist, ttl=%v", ttl)
	}
}

func TestRedisRecorder_SeriesAndDistribution(t *testing.T) {
	t.Parallel()

	rec, _ := newRecorder(t)
	ctx := context.Background()

	day1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	_ = rec.ObserveReading(ctx, "sensor-1", day1)
	_ = rec.ObserveReading(ctx, "sensor-1", day2)
	_ = rec.ObserveReading(ctx, "sensor-2", day2)
	_ = rec.ObserveReading(ctx, "sensor-2", day2)

	series, err := rec.ActiveSensorSeries(ctx, day2, day1, "day")
	if err != nil {
		t.Fatalf("ActiveSensorSeries(day): %v", err)
	}
	if len(series) != 2 || series[0].Bucket != "2025-01-01" || series[0].Active != 1 || series[1].Active != 2 {
		t.Fatalf("unexpected day series: %+v", series)
	}

	months, err := rec.ActiveSensorSeries(ctx, day1, day2, "month")
	if err != nil || len(months) != 1 || months[0].Bucket != "2025-01" || months[0].Active != 2 {
		t.Fatalf("unexpected month series: %+v err=%v", months, err)
	}

	items, err := rec.ReadingsBySensor(ctx, day1, day2, 10)
	if err != nil {
		t.Fatalf("ReadingsBySensor: %v", err)
	}
	if len(items) != 2 || items[0].Key != "sensor-1" || items[0].Count != 2 || items[1].Count != 2 {
		t.Fatalf("unexpected dist items: %+v", items)
	}
}

func TestRedisRecorder_NilIsDisabled(t *testing.T) {
	t.Parallel()

	var rec *RedisRecorder
	ctx := context.Background()
	if err := rec.ObserveEvent(ctx, "new-alert", time.Now()); err != nil {
		t.Fatalf("ObserveEvent: %v", err)
	}
	act, ok, err := rec.Today(ctx, time.Now(), []string{"new-alert"})
	if ok || err != nil || act.Events["new-alert"] != 0 {
		t.Fatalf("expected disabled zeros, got %+v ok=%v err=%v", act, ok, err)
	}
}
