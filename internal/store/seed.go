package store

import (
	"context"
	"fmt"

	"github.com/DivyPatel-31/coastwatch/internal/model"
)

// SeedDemo provisions the demo fleet and two active alerts. It does nothing
// when sensors already exist, so restarts against a persistent backend are safe.
func SeedDemo(ctx context.Context, s Storage) error {
	existing, err := s.ListSensors(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	sensors := []struct {
		sensor model.Sensor
		value  float64
		unit   string
	}{
		{model.Sensor{Name: "Harbor Tide Gauge", Type: model.SensorTideGauge, Latitude: "40.7128", Longitude: "-74.0060", IsActive: true}, 2.3, "m"},
		{model.Sensor{Name: "Weather Station Alpha", Type: model.SensorWeatherStation, Latitude: "40.7589", Longitude: "-73.9851", IsActive: true}, 15.2, "°C"},
	}
	for _, item := range sensors {
		created, err := s.CreateSensor(ctx, item.sensor)
		if err != nil {
			return fmt.Errorf("seed sensor %q: %w", item.sensor.Name, err)
		}
		if _, err := s.CreateSensorReading(ctx, model.SensorReading{SensorID: created.ID, Value: item.value, Unit: item.unit}); err != nil {
			return fmt.Errorf("seed reading %q: %w", item.sensor.Name, err)
		}
	}

	alerts := []model.Alert{
		{
			Type:        model.AlertPollution,
			Severity:    model.SeverityMedium,
			Title:       "High Tide Alert",
			Description: "Elevated water levels detected",
			Location:    "Bay Area",
			Latitude:    strPtr("40.7589"),
			Longitude:   strPtr("-73.9851"),
		},
		{
			Type:        model.AlertStormSurge,
			Severity:    model.SeverityCritical,
			Title:       "Storm Surge Warning",
			Description: "High tide expected at 3:45 PM - Evacuation recommended for Zone A",
			Location:    "Coastal Zone A",
			Latitude:    strPtr("40.7128"),
			Longitude:   strPtr("-74.0060"),
		},
	}
	for _, a := range alerts {
		if _, err := s.CreateAlert(ctx, a); err != nil {
			return fmt.Errorf("seed alert %q: %w", a.Title, err)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }
