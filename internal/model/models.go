package model

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type Role string

const (
	RoleGovernment Role = "government"
	RoleNGO        Role = "ngo"
	RoleFisherfolk Role = "fisherfolk"
)

func (r Role) Valid() bool {
	switch r {
	case RoleGovernment, RoleNGO, RoleFisherfolk:
		return true
	}
	return false
}

type SensorType string

const (
	SensorTideGauge        SensorType = "tide_gauge"
	SensorWeatherStation   SensorType = "weather_station"
	SensorPollutionMonitor SensorType = "pollution_monitor"
	SensorErosion          SensorType = "erosion_sensor"
)

type AlertType string

const (
	AlertStormSurge AlertType = "storm_surge"
	AlertCyclone    AlertType = "cyclone"
	AlertErosion    AlertType = "erosion"
	AlertPollution  AlertType = "pollution"
	AlertAlgalBloom AlertType = "algal_bloom"
	AlertAllClear   AlertType = "all_clear"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type ReportType string

const (
	ReportPollution ReportType = "pollution"
	ReportErosion   ReportType = "erosion"
	ReportWildlife  ReportType = "wildlife"
	ReportStorm     ReportType = "storm"
	ReportOther     ReportType = "other"
)

type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportVerified  ReportStatus = "verified"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

type NotificationType string

const (
	NotificationAlert   NotificationType = "alert"
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
)

// User ids are the identity provider's subject, not generated here.
type User struct {
	ID              string    `gorm:"type:varchar(255);primaryKey;column:id" json:"id"`
	Email           *string   `gorm:"type:varchar(255);uniqueIndex;column:email" json:"email"`
	FirstName       string    `gorm:"type:varchar(255);column:first_name" json:"firstName"`
	LastName        string    `gorm:"type:varchar(255);column:last_name" json:"lastName"`
	ProfileImageURL string    `gorm:"type:text;column:profile_image_url" json:"profileImageUrl"`
	Role            Role      `gorm:"type:varchar(20);not null;default:fisherfolk;index;column:role" json:"role"`
	CreatedAt       time.Time `gorm:"not null;column:created_at" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"not null;column:updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

type Sensor struct {
	ID          string     `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	Name        string     `gorm:"type:text;not null;column:name" json:"name"`
	Type        SensorType `gorm:"type:varchar(32);not null;column:type" json:"type"`
	Latitude    string     `gorm:"type:varchar(32);not null;column:latitude" json:"latitude"`
	Longitude   string     `gorm:"type:varchar(32);not null;column:longitude" json:"longitude"`
	IsActive    bool       `gorm:"not null;index;column:is_active" json:"isActive"`
	LastValue   *float64   `gorm:"column:last_value" json:"lastValue"`
	LastReading *time.Time `gorm:"column:last_reading" json:"lastReading"`
	CreatedAt   time.Time  `gorm:"not null;index:idx_sensors_created,sort:desc;column:created_at" json:"createdAt"`
}

func (Sensor) TableName() string { return "sensors" }

type SensorReading struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	SensorID  string    `gorm:"type:varchar(36);not null;index:idx_readings_sensor_ts,priority:1;column:sensor_id" json:"sensorId"`
	Value     float64   `gorm:"not null;column:value" json:"value"`
	Unit      string    `gorm:"type:varchar(32);not null;column:unit" json:"unit"`
	Timestamp time.Time `gorm:"not null;index:idx_readings_sensor_ts,priority:2,sort:desc;column:timestamp" json:"timestamp"`
}

func (SensorReading) TableName() string { return "sensor_readings" }

// Alert keeps ResolvedAt non-nil exactly when IsActive is false.
type Alert struct {
	ID          string     `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	Type        AlertType  `gorm:"type:varchar(32);not null;column:type" json:"type"`
	Severity    Severity   `gorm:"type:varchar(16);not null;column:severity" json:"severity"`
	Title       string     `gorm:"type:text;not null;column:title" json:"title"`
	Description string     `gorm:"type:text;column:description" json:"description"`
	Location    string     `gorm:"type:text;not null;column:location" json:"location"`
	Latitude    *string    `gorm:"type:varchar(32);column:latitude" json:"latitude"`
	Longitude   *string    `gorm:"type:varchar(32);column:longitude" json:"longitude"`
	IsActive    bool       `gorm:"not null;index;column:is_active" json:"isActive"`
	CreatedAt   time.Time  `gorm:"not null;index:idx_alerts_created,sort:desc;column:created_at" json:"createdAt"`
	ResolvedAt  *time.Time `gorm:"column:resolved_at" json:"resolvedAt"`
}

func (Alert) TableName() string { return "alerts" }

type Report struct {
	ID          string       `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	UserID      string       `gorm:"type:varchar(255);not null;index;column:user_id" json:"userId"`
	Type        ReportType   `gorm:"type:varchar(32);not null;column:type" json:"type"`
	Title       string       `gorm:"type:text;not null;column:title" json:"title"`
	Description string       `gorm:"type:text;not null;column:description" json:"description"`
	Location    string       `gorm:"type:text;not null;column:location" json:"location"`
	Latitude    *string      `gorm:"type:varchar(32);column:latitude" json:"latitude"`
	Longitude   *string      `gorm:"type:varchar(32);column:longitude" json:"longitude"`
	ImageURL    *string      `gorm:"type:text;column:image_url" json:"imageUrl"`
	Status      ReportStatus `gorm:"type:varchar(16);not null;default:pending;column:status" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;index:idx_reports_created,sort:desc;column:created_at" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"not null;column:updated_at" json:"updatedAt"`
}

func (Report) TableName() string { return "reports" }

type Notification struct {
	ID        string           `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	UserID    string           `gorm:"type:varchar(255);not null;index:idx_notifications_user_created,priority:1;column:user_id" json:"userId"`
	AlertID   *string          `gorm:"type:varchar(36);column:alert_id" json:"alertId"`
	Title     string           `gorm:"type:text;not null;column:title" json:"title"`
	Message   string           `gorm:"type:text;not null;column:message" json:"message"`
	Type      NotificationType `gorm:"type:varchar(16);not null;column:type" json:"type"`
	IsRead    bool             `gorm:"not null;default:false;column:is_read" json:"isRead"`
	CreatedAt time.Time        `gorm:"not null;index:idx_notifications_user_created,priority:2,sort:desc;column:created_at" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }

// ErrNotNumber is returned when a Numeric field holds anything but a finite number.
var ErrNotNumber = errors.New("must be a finite number")

// Numeric decodes from either a JSON number or a numeric string ("2.35").
type Numeric float64

func (n *Numeric) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrNotNumber
	}
	*n = Numeric(f)
	return nil
}

func (n Numeric) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(n))
}
