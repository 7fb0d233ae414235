package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
)

// MemoryStore keeps every table in process memory for local and demo runs.
// One RWMutex guards all maps so a reading and its sensor update are applied together.
type MemoryStore struct {
	opt options

	mu            sync.RWMutex
	users         map[string]*model.User
	sensors       map[string]*model.Sensor
	readings      []model.SensorReading
	alerts        map[string]*model.Alert
	reports       map[string]*model.Report
	notifications map[string]*model.Notification

	// seq orders rows created within the same clock tick.
	seq  uint64
	rank map[string]uint64
}

var _ Storage = (*MemoryStore)(nil)

func NewMemory(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opt:           buildOptions(opts),
		users:         map[string]*model.User{},
		sensors:       map[string]*model.Sensor{},
		alerts:        map[string]*model.Alert{},
		reports:       map[string]*model.Report{},
		notifications: map[string]*model.Notification{},
		rank:          map[string]uint64{},
	}
}

func (s *MemoryStore) now() time.Time {
	return s.opt.now().UTC().Truncate(time.Microsecond)
}

// track must be called with s.mu held for writing.
func (s *MemoryStore) track(id string) {
	s.seq++
	s.rank[id] = s.seq
}

// newestFirst sorts by creation time, breaking ties by insertion order.
func newestFirst[T any](s *MemoryStore, rows []T, id func(T) string, created func(T) time.Time) {
	sort.SliceStable(rows, func(i, j int) bool {
		ci, cj := created(rows[i]), created(rows[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return s.rank[id(rows[i])] > s.rank[id(rows[j])]
	})
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return *u, nil
}

func (s *MemoryStore) UpsertUser(_ context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		return model.User{}, errors.New("user id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Email != nil {
		for id, other := range s.users {
			if id != u.ID && other.Email != nil && *other.Email == *u.Email {
				return model.User{}, ErrConflict
			}
		}
	}
	now := s.now()
	if cur, ok := s.users[u.ID]; ok {
		cur.Email = u.Email
		cur.FirstName = u.FirstName
		cur.LastName = u.LastName
		cur.ProfileImageURL = u.ProfileImageURL
		cur.UpdatedAt = now
		return *cur, nil
	}
	u.Role = defaultRole(u.Role)
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = &u
	s.track(u.ID)
	return u, nil
}

func (s *MemoryStore) UpdateUserRole(_ context.Context, id string, role model.Role) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now()
	return *u, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	newestFirst(s, out, func(u model.User) string { return u.ID }, func(u model.User) time.Time { return u.CreatedAt })
	return out, nil
}

func (s *MemoryStore) ListSensors(_ context.Context) ([]model.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Sensor, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		out = append(out, *sensor)
	}
	newestFirst(s, out, func(x model.Sensor) string { return x.ID }, func(x model.Sensor) time.Time { return x.CreatedAt })
	return out, nil
}

func (s *MemoryStore) GetSensor(_ context.Context, id string) (model.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sensor, ok := s.sensors[id]
	if !ok {
		return model.Sensor{}, ErrNotFound
	}
	return *sensor, nil
}

func (s *MemoryStore) CreateSensor(_ context.Context, sensor model.Sensor) (model.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sensor.ID = s.opt.newID()
	sensor.CreatedAt = s.now()
	sensor.LastValue = nil
	sensor.LastReading = nil
	s.sensors[sensor.ID] = &sensor
	s.track(sensor.ID)
	return sensor, nil
}

func (s *MemoryStore) ListSensorReadings(_ context.Context, sensorID string, r TimeRange) ([]model.SensorReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sensors[sensorID]; !ok {
		return nil, ErrNotFound
	}
	out := []model.SensorReading{}
	// Walk backwards so equal timestamps keep the latest reading first.
	for i := len(s.readings) - 1; i >= 0; i-- {
		rd := s.readings[i]
		if rd.SensorID != sensorID || !r.contains(rd.Timestamp) {
			continue
		}
		out = append(out, rd)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) CreateSensorReading(_ context.Context, r model.SensorReading) (model.SensorReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sensor, ok := s.sensors[r.SensorID]
	if !ok {
		return model.SensorReading{}, ErrNotFound
	}
	r.ID = s.opt.newID()
	r.Timestamp = s.now()
	s.readings = append(s.readings, r)

	value := r.Value
	ts := r.Timestamp
	sensor.LastValue = &value
	sensor.LastReading = &ts
	return r, nil
}

func (s *MemoryStore) listAlerts(activeOnly bool) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, *a)
	}
	newestFirst(s, out, func(x model.Alert) string { return x.ID }, func(x model.Alert) time.Time { return x.CreatedAt })
	return out
}

func (s *MemoryStore) ListAlerts(_ context.Context) ([]model.Alert, error) {
	return s.listAlerts(false), nil
}

func (s *MemoryStore) ListActiveAlerts(_ context.Context) ([]model.Alert, error) {
	return s.listAlerts(true), nil
}

func (s *MemoryStore) CreateAlert(_ context.Context, a model.Alert) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.opt.newID()
	a.CreatedAt = s.now()
	a.IsActive = true
	a.ResolvedAt = nil
	s.alerts[a.ID] = &a
	s.track(a.ID)
	return a, nil
}

func (s *MemoryStore) ResolveAlert(_ context.Context, id string) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return model.Alert{}, ErrNotFound
	}
	now := s.now()
	a.IsActive = false
	a.ResolvedAt = &now
	return *a, nil
}

func (s *MemoryStore) listReports(userID string) []model.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Report, 0, len(s.reports))
	for _, r := range s.reports {
		if userID != "" && r.UserID != userID {
			continue
		}
		out = append(out, *r)
	}
	newestFirst(s, out, func(x model.Report) string { return x.ID }, func(x model.Report) time.Time { return x.CreatedAt })
	return out
}

func (s *MemoryStore) ListReports(_ context.Context) ([]model.Report, error) {
	return s.listReports(""), nil
}

func (s *MemoryStore) ListReportsByUser(_ context.Context, userID string) ([]model.Report, error) {
	if userID == "" {
		return []model.Report{}, nil
	}
	return s.listReports(userID), nil
}

func (s *MemoryStore) CreateReport(_ context.Context, r model.Report) (model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[r.UserID]; !ok {
		return model.Report{}, ErrNotFound
	}
	now := s.now()
	r.ID = s.opt.newID()
	r.Status = model.ReportPending
	r.CreatedAt = now
	r.UpdatedAt = now
	s.reports[r.ID] = &r
	s.track(r.ID)
	return r, nil
}

func (s *MemoryStore) UpdateReportStatus(_ context.Context, id string, status model.ReportStatus) (model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return model.Report{}, ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.now()
	return *r, nil
}

func (s *MemoryStore) ListNotificationsByUser(_ context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Notification{}
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	newestFirst(s, out, func(x model.Notification) string { return x.ID }, func(x model.Notification) time.Time { return x.CreatedAt })
	return out, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n model.Notification) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[n.UserID]; !ok {
		return model.Notification{}, ErrNotFound
	}
	if n.AlertID != nil {
		if _, ok := s.alerts[*n.AlertID]; !ok {
			return model.Notification{}, ErrNotFound
		}
	}
	n.ID = s.opt.newID()
	n.CreatedAt = s.now()
	n.IsRead = false
	s.notifications[n.ID] = &n
	s.track(n.ID)
	return n, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (s *MemoryStore) DeleteReadNotificationsBefore(_ context.Context, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, n := range s.notifications {
		if deleted >= int64(limit) {
			break
		}
		if n.IsRead && n.CreatedAt.Before(before) {
			delete(s.notifications, id)
			delete(s.rank, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, a := range s.alerts {
		if a.IsActive {
			st.ActiveAlerts++
		}
	}
	for _, sensor := range s.sensors {
		if sensor.IsActive {
			st.SensorsOnline++
		}
	}
	st.TotalReports = int64(len(s.reports))
	return st, nil
}
