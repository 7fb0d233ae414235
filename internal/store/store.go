package store

import (
	"context"
	"errors"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by every backend when an operation names an id
	// that does not exist (or, for owner-scoped mutations, is not owned by the caller).
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// TimeRange bounds reading history. Each bound is optional and inclusive.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

func (r TimeRange) contains(ts time.Time) bool {
	if r.From != nil && ts.Before(*r.From) {
		return false
	}
	if r.To != nil && ts.After(*r.To) {
		return false
	}
	return true
}

type Stats struct {
	ActiveAlerts  int64 `json:"activeAlerts"`
	SensorsOnline int64 `json:"sensorsOnline"`
	TotalReports  int64 `json:"totalReports"`
}

// Storage is the row-level contract shared by the relational and in-memory
// backends. Lists are ordered newest first; readings by timestamp, the rest by
// creation time. Creates assign ids and timestamps and ignore caller values.
type Storage interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	UpsertUser(ctx context.Context, u model.User) (model.User, error)
	UpdateUserRole(ctx context.Context, id string, role model.Role) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	ListSensors(ctx context.Context) ([]model.Sensor, error)
	GetSensor(ctx context.Context, id string) (model.Sensor, error)
	CreateSensor(ctx context.Context, s model.Sensor) (model.Sensor, error)
	ListSensorReadings(ctx context.Context, sensorID string, r TimeRange) ([]model.SensorReading, error)
	CreateSensorReading(ctx context.Context, r model.SensorReading) (model.SensorReading, error)

	ListAlerts(ctx context.Context) ([]model.Alert, error)
	ListActiveAlerts(ctx context.Context) ([]model.Alert, error)
	CreateAlert(ctx context.Context, a model.Alert) (model.Alert, error)
	ResolveAlert(ctx context.Context, id string) (model.Alert, error)

	ListReports(ctx context.Context) ([]model.Report, error)
	ListReportsByUser(ctx context.Context, userID string) ([]model.Report, error)
	CreateReport(ctx context.Context, r model.Report) (model.Report, error)
	UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus) (model.Report, error)

	ListNotificationsByUser(ctx context.Context, userID string) ([]model.Notification, error)
	CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
	DeleteReadNotificationsBefore(ctx context.Context, before time.Time, limit int) (int64, error)

	Stats(ctx context.Context) (Stats, error)
}

type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock replaces the time source used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func defaultRole(r model.Role) model.Role {
	if r.Valid() {
		return r
	}
	return model.RoleFisherfolk
}
