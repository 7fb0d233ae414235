// Package tsdb mirrors sensor readings into InfluxDB for long-range charting.
// The relational store stays the system of record; the mirror is lossy under
// back-pressure.
package tsdb

import (
	"context"
	"errors"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const Measurement = "sensor_reading"

var errQueueFull = errors.New("tsdb: queue full")

// PointWriter is satisfied by influxdb2's blocking write API.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type Mirror struct {
	batcher *Batcher[model.SensorReading]
	log     *zap.Logger
	stats   *obs.Stats
	closeFn func()
}

type Options struct {
	BatchSize     int
	FlushInterval time.Duration
}

func NewMirror(w PointWriter, log *zap.Logger, stats *obs.Stats, opts Options) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	m := &Mirror{log: log, stats: stats}
	m.batcher = NewBatcher[model.SensorReading](opts.BatchSize, opts.FlushInterval, 10*time.Second, func(ctx context.Context, rows []model.SensorReading) error {
		points := make([]*write.Point, 0, len(rows))
		for _, r := range rows {
			points = append(points, Point(r))
		}
		err := w.WritePoint(ctx, points...)
		m.stats.ObserveTSDBWrite(len(points), err)
		if err != nil {
			m.log.Warn("tsdb: write points", zap.Int("points", len(points)), zap.Error(err))
		}
		return err
	})
	return m
}

// NewInfluxMirror connects to an InfluxDB v2 server.
func NewInfluxMirror(url, token, org, bucket string, log *zap.Logger, stats *obs.Stats) *Mirror {
	client := influxdb2.NewClient(url, token)
	m := NewMirror(client.WriteAPIBlocking(org, bucket), log, stats, Options{})
	m.closeFn = client.Close
	return m
}

// Point renders a reading as a line-protocol point.
func Point(r model.SensorReading) *write.Point {
	return influxdb2.NewPointWithMeasurement(Measurement).
		AddTag("sensor_id", r.SensorID).
		AddTag("unit", r.Unit).
		AddField("value", r.Value).
		SetTime(r.Timestamp)
}

// Record queues r for the next batch. It never blocks.
func (m *Mirror) Record(r model.SensorReading) {
	if m == nil {
		return
	}
	if !m.batcher.Enqueue(r) {
		m.stats.ObserveTSDBWrite(0, errQueueFull)
		m.log.Debug("tsdb: queue full, reading dropped", zap.String("reading_id", r.ID))
	}
}

// Close flushes pending points and releases the client.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.batcher.Close()
	if m.closeFn != nil {
		m.closeFn()
	}
}
