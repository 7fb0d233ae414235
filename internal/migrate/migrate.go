package migrate

import (
	"context"
	"fmt"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"gorm.io/gorm"
)

// Models lists every table owned by the relational backend.
func Models() []any {
	return []any{
		&model.User{},
		&model.Sensor{},
		&model.SensorReading{},
		&model.Alert{},
		&model.Report{},
		&model.Notification{},
	}
}

type foreignKey struct {
	name, table, column, refTable string
}

var foreignKeys = []foreignKey{
	{"fk_sensor_readings_sensor", "sensor_readings", "sensor_id", "sensors"},
	{"fk_reports_user", "reports", "user_id", "users"},
	{"fk_notifications_user", "notifications", "user_id", "users"},
	{"fk_notifications_alert", "notifications", "alert_id", "alerts"},
}

// addForeignKeys is Postgres-only; sqlite cannot add constraints to an
// existing table.
func addForeignKeys(gdb *gorm.DB) error {
	if gdb.Dialector.Name() != "postgres" {
		return nil
	}
	for _, fk := range foreignKeys {
		stmt := fmt.Sprintf(`DO $$ BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
		ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (id);
	END IF;
END $$`, fk.name, fk.table, fk.name, fk.column, fk.refTable)
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("add %s: %w", fk.name, err)
		}
	}
	return nil
}

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	gdb := db.WithContext(ctx)
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}
	if err := addForeignKeys(gdb); err != nil {
		return err
	}

	// Partial index: /api/alerts/active and the stats count only touch active rows.
	if err := gdb.Exec(`CREATE INDEX IF NOT EXISTS idx_alerts_active_created ON alerts (created_at DESC) WHERE is_active`).Error; err != nil {
		return err
	}
	if err := gdb.Exec(`CREATE INDEX IF NOT EXISTS idx_reports_user_created ON reports (user_id, created_at DESC)`).Error; err != nil {
		return err
	}
	if err := gdb.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_read_created ON notifications (created_at) WHERE is_read`).Error; err != nil {
		return err
	}
	return nil
}
