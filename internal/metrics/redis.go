package metrics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRecorder keeps daily activity counters for published events and
// sensor readings. Recording is best-effort: Redis failures never reach the
// write path that triggered them.
type RedisRecorder struct {
	rdb      *redis.Client
	dayTTL   time.Duration
	distTTL  time.Duration
	monthTTL time.Duration
}

type RecorderOption func(*RedisRecorder)

func WithTTLs(dayTTL, distTTL, monthTTL time.Duration) RecorderOption {
	return func(r *RedisRecorder) {
		if dayTTL > 0 {
			r.dayTTL = dayTTL
		}
		if distTTL > 0 {
			r.distTTL = distTTL
		}
		if monthTTL > 0 {
			r.monthTTL = monthTTL
		}
	}
}

func NewRedisRecorder(rdb *redis.Client, opts ...RecorderOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:      rdb,
		dayTTL:   180 * 24 * time.Hour,
		distTTL:  90 * 24 * time.Hour,
		monthTTL: 18 * 31 * 24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func dayOf(ts time.Time) string   { return ts.UTC().Format("2006-01-02") }
func monthOf(ts time.Time) string { return ts.UTC().Format("2006-01") }

func eventsDayKey(kind, date string) string { return fmt.Sprintf("activity:events:%s:%s", kind, date) }
func readingsDayKey(date string) string     { return "activity:readings:" + date }
func sensorsDayKey(date string) string      { return "activity:sensors:day:" + date }
func sensorsMonthKey(month string) string   { return "activity:sensors:month:" + month }
func readingsDistKey(date string) string    { return "activity:readings:by_sensor:" + date }

// ObserveEvent counts one published realtime event of kind.
func (r *RedisRecorder) ObserveEvent(ctx context.Context, kind string, ts time.Time) error {
	if r == nil || r.rdb == nil {
		return nil
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil
	}
	dayKey := eventsDayKey(kind, dayOf(ts))

	pipe := r.rdb.Pipeline()
	pipe.Incr(ctx, dayKey)
	pipe.Incr(ctx, fmt.Sprintf("activity:events:%s:total", kind))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return r.expireKeys(ctx, map[string]time.Duration{dayKey: r.dayTTL})
}

// ObserveReading counts a stored reading and marks its sensor active for the
// day and month.
func (r *RedisRecorder) ObserveReading(ctx context.Context, sensorID string, ts time.Time) error {
	if r == nil || r.rdb == nil {
		return nil
	}
	sensorID = strings.TrimSpace(sensorID)
	date := dayOf(ts)

	pipe := r.rdb.Pipeline()
	expire := map[string]time.Duration{}
	pipe.Incr(ctx, readingsDayKey(date))
	expire[readingsDayKey(date)] = r.dayTTL
	if sensorID != "" {
		pipe.PFAdd(ctx, sensorsDayKey(date), sensorID)
		expire[sensorsDayKey(date)] = r.dayTTL

		month := sensorsMonthKey(monthOf(ts))
		pipe.PFAdd(ctx, month, sensorID)
		expire[month] = r.monthTTL

		pipe.HIncrBy(ctx, readingsDistKey(date), sensorID, 1)
		expire[readingsDistKey(date)] = r.distTTL
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return r.expireKeys(ctx, expire)
}

func (r *RedisRecorder) expireKeys(ctx context.Context, keys map[string]time.Duration) error {
	if r == nil || r.rdb == nil || len(keys) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	for k, ttl := range keys {
		if strings.TrimSpace(k) == "" || ttl <= 0 {
			continue
		}
		pipe.Expire(ctx, k, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Activity is one UTC day of counters.
type Activity struct {
	Date          string           `json:"date"`
	Events        map[string]int64 `json:"events"`
	Readings      int64            `json:"readings"`
	ActiveSensors int64            `json:"activeSensors"`
}

// Today returns the counters for the UTC day containing now. ok is false when
// no Redis is configured; callers then serve zeros.
func (r *RedisRecorder) Today(ctx context.Context, now time.Time, kinds []string) (Activity, bool, error) {
	date := dayOf(now)
	out := Activity{Date: date, Events: make(map[string]int64, len(kinds))}
	for _, k := range kinds {
		out.Events[k] = 0
	}
	if r == nil || r.rdb == nil {
		return out, false, nil
	}

	pipe := r.rdb.Pipeline()
	eventCmds := make(map[string]*redis.StringCmd, len(kinds))
	for _, k := range kinds {
		eventCmds[k] = pipe.Get(ctx, eventsDayKey(k, date))
	}
	readingsCmd := pipe.Get(ctx, readingsDayKey(date))
	sensorsCmd := pipe.PFCount(ctx, sensorsDayKey(date))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return out, true, err
	}
	for k, cmd := range eventCmds {
		out.Events[k], _ = cmd.Int64()
	}
	out.Readings, _ = readingsCmd.Int64()
	out.ActiveSensors, _ = sensorsCmd.Result()
	return out, true, nil
}

// EventTotals returns all-time counts per kind.
func (r *RedisRecorder) EventTotals(ctx context.Context, kinds []string) (map[string]int64, error) {
	out := make(map[string]int64, len(kinds))
	for _, k := range kinds {
		out[k] = 0
	}
	if r == nil || r.rdb == nil {
		return out, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(kinds))
	for _, k := range kinds {
		cmds[k] = pipe.Get(ctx, fmt.Sprintf("activity:events:%s:total", k))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	for k, cmd := range cmds {
		out[k], _ = cmd.Int64()
	}
	return out, nil
}

type BucketCount struct {
	Bucket string `json:"bucket"`
	Active int64  `json:"active"`
}

type DistItem struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ReadingsBySensor sums per-sensor reading counts over [start, end] by day,
// busiest sensors first.
func (r *RedisRecorder) ReadingsBySensor(ctx context.Context, start, end time.Time, limit int) ([]DistItem, error) {
	if r == nil || r.rdb == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	start, end = orderedUTC(start, end)

	acc := map[string]int64{}
	cur := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		m, err := r.rdb.HGetAll(ctx, readingsDistKey(dayOf(cur))).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		for k, v := range m {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				continue
			}
			acc[k] += n
		}
		cur = cur.AddDate(0, 0, 1)
	}

	items := make([]DistItem, 0, len(acc))
	for k, v := range acc {
		items = append(items, DistItem{Key: k, Count: v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ActiveSensorSeries counts distinct reporting sensors per day or month.
func (r *RedisRecorder) ActiveSensorSeries(ctx context.Context, start, end time.Time, bucket string) ([]BucketCount, error) {
	if r == nil || r.rdb == nil {
		return nil, nil
	}
	start, end = orderedUTC(start, end)

	var (
		cur, last time.Time
		step      func(time.Time) time.Time
		key       func(time.Time) string
		label     func(time.Time) string
	)
	switch bucket {
	case "month":
		cur = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		last = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		step = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
		key = func(t time.Time) string { return sensorsMonthKey(monthOf(t)) }
		label = monthOf
	default:
		cur = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		last = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
		key = func(t time.Time) string { return sensorsDayKey(dayOf(t)) }
		label = dayOf
	}

	var buckets []time.Time
	pipe := r.rdb.Pipeline()
	var cmds []*redis.IntCmd
	for ; !cur.After(last); cur = step(cur) {
		buckets = append(buckets, cur)
		cmds = append(cmds, pipe.PFCount(ctx, key(cur)))
	}
	if len(cmds) == 0 {
		return nil, nil
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	out := make([]BucketCount, 0, len(buckets))
	for i, b := range buckets {
		n, _ := cmds[i].Result()
		out = append(out, BucketCount{Bucket: label(b), Active: n})
	}
	return out, nil
}

func orderedUTC(start, end time.Time) (time.Time, time.Time) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return end, start
	}
	return start, end
}
