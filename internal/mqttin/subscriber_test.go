package mqttin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/ingest"
	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/store"
)

type fakeRecorder struct {
	inputs []ingest.Input
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, in ingest.Input) (model.SensorReading, error) {
	f.inputs = append(f.inputs, in)
	return model.SensorReading{}, f.err
}

func TestSensorIDFromTopic(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"coastwatch/sensors/sensor-1/readings":  "sensor-1",
		"/coastwatch/sensors/abc/readings/":     "abc",
		"coastwatch/sensors/readings":           "",
		"coastwatch/gauges/sensor-1/readings":   "",
		"site-a/coastwatch/sensors/x1/readings": "x1",
	}
	for topic, want := range cases {
		if got := SensorIDFromTopic(topic); got != want {
			t.Fatalf("%q: expected %q, got %q", topic, want, got)
		}
	}
}

func TestHandle_TopicSensorWins(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	stats := obs.New()
	s := NewSubscriber(Options{Broker: "tcp://127.0.0.1:1883"}, rec, nil, stats)

	if err := s.handle("coastwatch/sensors/sensor-2/readings", []byte(`{"sensorId":"other","value":"15.4","unit":"°C"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(rec.inputs) != 1 || rec.inputs[0].SensorID != "sensor-2" || float64(*rec.inputs[0].Value) != 15.4 {
		t.Fatalf("unexpected input: %+v", rec.inputs)
	}
	if snap := stats.Snapshot(); snap.Consumer.Messages != 1 || snap.Consumer.Errors != 0 {
		t.Fatalf("unexpected stats: %+v", snap.Consumer)
	}
}

func TestHandle_Failures(t *testing.T) {
	t.Parallel()

	stats := obs.New()
	s := NewSubscriber(Options{}, &fakeRecorder{err: store.ErrNotFound}, nil, stats)
	if err := s.handle("coastwatch/sensors/ghost/readings", []byte(`{"value":1,"unit":"m"}`)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.handle("coastwatch/sensors/x/readings", []byte(`garbage`)); err == nil {
		t.Fatalf("expected decode error")
	}

	s2 := NewSubscriber(Options{}, &fakeRecorder{err: errors.New("db down")}, nil, stats)
	_ = s2.handle("coastwatch/sensors/x/readings", []byte(`{"value":1,"unit":"m"}`))

	if snap := stats.Snapshot(); snap.Consumer.Messages != 3 || snap.Consumer.Errors != 1 {
		t.Fatalf("unexpected stats: %+v", snap.Consumer)
	}
}

func TestServe_RequiresBroker(t *testing.T) {
	t.Parallel()

	s := NewSubscriber(Options{}, &fakeRecorder{}, nil, nil)
	if s.opts.Topic != DefaultTopic {
		t.Fatalf("unexpected default topic %q", s.opts.Topic)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Serve(ctx); err == nil {
		t.Fatalf("expected error without broker")
	}
}
