package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the relational backend. Every mutation is a single statement
// except CreateSensorReading, which also refreshes the sensor in one transaction.
type GormStore struct {
	db  *gorm.DB
	opt options
}

var _ Storage = (*GormStore)(nil)

func NewGorm(db *gorm.DB, opts ...Option) *GormStore {
	return &GormStore{db: db, opt: buildOptions(opts)}
}

func (s *GormStore) now() time.Time {
	return s.opt.now().UTC().Truncate(time.Microsecond)
}

// translate maps driver errors onto the backend-neutral sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}

// mustExist reports ErrNotFound when no row of m's table has id. The foreign
// keys catch the same case on Postgres; sqlite test databases run without them.
func mustExist(tx *gorm.DB, m any, id string) error {
	var n int64
	if err := tx.Model(m).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return model.User{}, translate(err)
	}
	return u, nil
}

func (s *GormStore) UpsertUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		return model.User{}, errors.New("user id is empty")
	}
	now := s.now()
	u.Role = defaultRole(u.Role)
	u.CreatedAt = now
	u.UpdatedAt = now
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "profile_image_url", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return model.User{}, translate(err)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *GormStore) UpdateUserRole(ctx context.Context, id string, role model.Role) (model.User, error) {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"role": role, "updated_at": s.now()})
	if res.Error != nil {
		return model.User{}, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.User{}, ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *GormStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) ListSensors(ctx context.Context) ([]model.Sensor, error) {
	var out []model.Sensor
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) GetSensor(ctx context.Context, id string) (model.Sensor, error) {
	var sensor model.Sensor
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sensor).Error; err != nil {
		return model.Sensor{}, translate(err)
	}
	return sensor, nil
}

func (s *GormStore) CreateSensor(ctx context.Context, sensor model.Sensor) (model.Sensor, error) {
	sensor.ID = s.opt.newID()
	sensor.CreatedAt = s.now()
	sensor.LastValue = nil
	sensor.LastReading = nil
	if err := s.db.WithContext(ctx).Create(&sensor).Error; err != nil {
		return model.Sensor{}, translate(err)
	}
	return sensor, nil
}

func (s *GormStore) ListSensorReadings(ctx context.Context, sensorID string, r TimeRange) ([]model.SensorReading, error) {
	if _, err := s.GetSensor(ctx, sensorID); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("sensor_id = ?", sensorID)
	if r.From != nil {
		q = q.Where("timestamp >= ?", r.From.UTC())
	}
	if r.To != nil {
		q = q.Where("timestamp <= ?", r.To.UTC())
	}
	var out []model.SensorReading
	err := q.Order("timestamp DESC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) CreateSensorReading(ctx context.Context, r model.SensorReading) (model.SensorReading, error) {
	r.ID = s.opt.newID()
	r.Timestamp = s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &model.Sensor{}, r.SensorID); err != nil {
			return err
		}
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		return tx.Model(&model.Sensor{}).Where("id = ?", r.SensorID).
			Updates(map[string]any{"last_value": r.Value, "last_reading": r.Timestamp}).Error
	})
	if err != nil {
		return model.SensorReading{}, translate(err)
	}
	return r, nil
}

func (s *GormStore) ListAlerts(ctx context.Context) ([]model.Alert, error) {
	var out []model.Alert
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) ListActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	var out []model.Alert
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) CreateAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	a.ID = s.opt.newID()
	a.CreatedAt = s.now()
	a.IsActive = true
	a.ResolvedAt = nil
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return model.Alert{}, translate(err)
	}
	return a, nil
}

// ResolveAlert re-stamps resolved_at when the alert is already resolved.
func (s *GormStore) ResolveAlert(ctx context.Context, id string) (model.Alert, error) {
	res := s.db.WithContext(ctx).Model(&model.Alert{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "resolved_at": s.now()})
	if res.Error != nil {
		return model.Alert{}, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Alert{}, ErrNotFound
	}
	var a model.Alert
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return model.Alert{}, translate(err)
	}
	return a, nil
}

func (s *GormStore) ListReports(ctx context.Context) ([]model.Report, error) {
	var out []model.Report
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) ListReportsByUser(ctx context.Context, userID string) ([]model.Report, error) {
	var out []model.Report
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) CreateReport(ctx context.Context, r model.Report) (model.Report, error) {
	now := s.now()
	r.ID = s.opt.newID()
	r.Status = model.ReportPending
	r.CreatedAt = now
	r.UpdatedAt = now
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &model.User{}, r.UserID); err != nil {
			return err
		}
		return tx.Create(&r).Error
	})
	if err != nil {
		return model.Report{}, translate(err)
	}
	return r, nil
}

func (s *GormStore) UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus) (model.Report, error) {
	res := s.db.WithContext(ctx).Model(&model.Report{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": s.now()})
	if res.Error != nil {
		return model.Report{}, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Report{}, ErrNotFound
	}
	var r model.Report
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return model.Report{}, translate(err)
	}
	return r, nil
}

func (s *GormStore) ListNotificationsByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	var out []model.Notification
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	n.ID = s.opt.newID()
	n.CreatedAt = s.now()
	n.IsRead = false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &model.User{}, n.UserID); err != nil {
			return err
		}
		if n.AlertID != nil {
			if err := mustExist(tx, &model.Alert{}, *n.AlertID); err != nil {
				return err
			}
		}
		return tx.Create(&n).Error
	})
	if err != nil {
		return model.Notification{}, translate(err)
	}
	return n, nil
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteReadNotificationsBefore(ctx context.Context, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	res := s.db.WithContext(ctx).Exec(`
		DELETE FROM notifications
		WHERE id IN (
			SELECT id FROM notifications
			WHERE is_read = ? AND created_at < ?
			LIMIT ?
		)`, true, before.UTC(), limit)
	return res.RowsAffected, translate(res.Error)
}

func (s *GormStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.Alert{}).Where("is_active = ?", true).Count(&st.ActiveAlerts).Error; err != nil {
		return Stats{}, translate(err)
	}
	if err := db.Model(&model.Sensor{}).Where("is_active = ?", true).Count(&st.SensorsOnline).Error; err != nil {
		return Stats{}, translate(err)
	}
	if err := db.Model(&model.Report{}).Count(&st.TotalReports).Error; err != nil {
		return Stats{}, translate(err)
	}
	return st, nil
}
