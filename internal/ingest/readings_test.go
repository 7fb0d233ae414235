package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/DivyPatel-31/coastwatch/internal/store"
)

type capture struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (c *capture) Publish(_ context.Context, e realtime.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

type recorder struct{ sensors []string }

func (r *recorder) ObserveReading(_ context.Context, sensorID string, _ time.Time) error {
	r.sensors = append(r.sensors, sensorID)
	return errors.New("redis down")
}

type mirror struct{ rows []model.SensorReading }

func (m *mirror) Record(r model.SensorReading) { m.rows = append(m.rows, r) }

func newSensor(t *testing.T, s store.Storage) model.Sensor {
	t.Helper()
	sensor, err := s.CreateSensor(context.Background(), model.Sensor{Name: "Harbor Tide Gauge", Type: model.SensorTideGauge, Latitude: "40.7128", Longitude: "-74.0060", IsActive: true})
	if err != nil {
		t.Fatalf("CreateSensor: %v", err)
	}
	return sensor
}

func num(v float64) *model.Numeric {
	n := model.Numeric(v)
	return &n
}

func TestRecord_StoresPublishesAndFansOut(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	sensor := newSensor(t, s)
	bus := &capture{}
	rec := &recorder{}
	mir := &mirror{}
	stats := obs.New()
	svc := NewReadings(s, bus, WithRecorder(rec), WithMirror(mir), WithStats(stats))

	saved, err := svc.Record(context.Background(), Input{SensorID: " " + sensor.ID + " ", Value: num(2.35), Unit: "m"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if saved.ID == "" || saved.Value != 2.35 || saved.Timestamp.IsZero() {
		t.Fatalf("unexpected reading: %+v", saved)
	}

	got, err := s.GetSensor(context.Background(), sensor.ID)
	if err != nil || got.LastValue == nil || *got.LastValue != 2.35 || got.LastReading == nil || !got.LastReading.Equal(saved.Timestamp) {
		t.Fatalf("sensor not updated: %+v err=%v", got, err)
	}

	if len(bus.events) != 1 {
		t.Fatalf("expected one event, got %d", len(bus.events))
	}
	ev, ok := bus.events[0].(realtime.SensorReading)
	if !ok || ev.Reading.ID != saved.ID {
		t.Fatalf("unexpected event: %#v", bus.events[0])
	}
	// A failing recorder does not fail the write.
	if len(rec.sensors) != 1 || len(mir.rows) != 1 {
		t.Fatalf("expected recorder and mirror calls, got %v / %d", rec.sensors, len(mir.rows))
	}
	if snap := stats.Snapshot(); snap.Readings.Ingested != 1 {
		t.Fatalf("unexpected stats: %+v", snap.Readings)
	}
}

func TestRecord_Rejections(t *testing.T) {
	t.Parallel()

	s := store.NewMemory()
	sensor := newSensor(t, s)
	bus := &capture{}
	svc := NewReadings(s, bus)
	ctx := context.Background()

	var invalid *InvalidError
	if _, err := svc.Record(ctx, Input{SensorID: sensor.ID, Unit: "m"}); !errors.As(err, &invalid) || invalid.Fields[0].Field != "value" {
		t.Fatalf("expected missing value error, got %v", err)
	}
	if _, err := svc.Record(ctx, Input{SensorID: "missing", Value: num(1), Unit: "m"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(bus.events) != 0 {
		t.Fatalf("rejected readings must not publish")
	}
	readings, _ := s.ListSensorReadings(ctx, sensor.ID, store.TimeRange{})
	if len(readings) != 0 {
		t.Fatalf("rejected readings must not persist, got %d", len(readings))
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	in, err := Decode([]byte(`{"sensorId":"sensor-1","value":"2.5","unit":"m"}`))
	if err != nil || in.SensorID != "sensor-1" || in.Value == nil || float64(*in.Value) != 2.5 {
		t.Fatalf("Decode: %+v err=%v", in, err)
	}

	var invalid *InvalidError
	if _, err := Decode([]byte(`{"sensorId":"s","value":"high"}`)); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidError, got %v", err)
	}
	if _, err := Decode([]byte(`nope`)); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidError for malformed body, got %v", err)
	}
}
