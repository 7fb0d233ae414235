// Package ingest is the single write path for sensor readings, shared by the
// HTTP API, the NSQ consumer and the MQTT subscriber.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/DivyPatel-31/coastwatch/internal/validate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Input is a reading as submitted by a sensor or an operator. Value accepts a
// JSON number or a numeric string.
type Input struct {
	SensorID string         `json:"sensorId" binding:"required,max=64"`
	Value    *model.Numeric `json:"value" binding:"required"`
	Unit     string         `json:"unit" binding:"required,max=32"`
}

// InvalidError lists the fields that failed validation.
type InvalidError struct {
	Fields []validate.FieldError
}

func (e *InvalidError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid reading: " + strings.Join(parts, "; ")
}

// ActivityRecorder counts stored readings.
type ActivityRecorder interface {
	ObserveReading(ctx context.Context, sensorID string, ts time.Time) error
}

// Mirror receives a copy of every stored reading.
type Mirror interface {
	Record(r model.SensorReading)
}

type Readings struct {
	store    store.Storage
	bus      realtime.Publisher
	recorder ActivityRecorder
	mirror   Mirror
	validate *validator.Validate
	log      *zap.Logger
	stats    *obs.Stats
}

type Option func(*Readings)

func WithRecorder(rec ActivityRecorder) Option { return func(r *Readings) { r.recorder = rec } }
func WithMirror(m Mirror) Option               { return func(r *Readings) { r.mirror = m } }
func WithLogger(log *zap.Logger) Option        { return func(r *Readings) { r.log = log } }
func WithStats(stats *obs.Stats) Option        { return func(r *Readings) { r.stats = stats } }

func NewReadings(s store.Storage, bus realtime.Publisher, opts ...Option) *Readings {
	r := &Readings{store: s, bus: bus, validate: validate.New(), log: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Decode parses a broker payload. Validation happens in Record.
func Decode(body []byte) (Input, error) {
	var in Input
	if err := json.Unmarshal(body, &in); err != nil {
		return Input{}, &InvalidError{Fields: validate.Fields(err)}
	}
	return in, nil
}

// Record validates and stores one reading, updates its sensor, and publishes
// a sensor-reading event. Unknown sensors yield store.ErrNotFound.
func (r *Readings) Record(ctx context.Context, in Input) (model.SensorReading, error) {
	in.SensorID = strings.TrimSpace(in.SensorID)
	in.Unit = strings.TrimSpace(in.Unit)
	if err := r.validate.Struct(in); err != nil {
		r.stats.ObserveReading(false)
		return model.SensorReading{}, &InvalidError{Fields: validate.Fields(err)}
	}

	saved, err := r.store.CreateSensorReading(ctx, model.SensorReading{
		SensorID: in.SensorID,
		Value:    float64(*in.Value),
		Unit:     in.Unit,
	})
	if err != nil {
		r.stats.ObserveReading(false)
		if errors.Is(err, store.ErrNotFound) {
			return model.SensorReading{}, err
		}
		return model.SensorReading{}, fmt.Errorf("store reading for sensor %s: %w", in.SensorID, err)
	}
	r.stats.ObserveReading(true)

	if r.bus != nil {
		r.bus.Publish(ctx, realtime.SensorReading{Reading: saved})
	}
	if r.recorder != nil {
		if err := r.recorder.ObserveReading(ctx, saved.SensorID, saved.Timestamp); err != nil {
			r.log.Debug("record reading activity", zap.String("sensor_id", saved.SensorID), zap.Error(err))
		}
	}
	if r.mirror != nil {
		r.mirror.Record(saved)
	}
	return saved, nil
}
