package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/ingest"
	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/DivyPatel-31/coastwatch/internal/validate"
	"github.com/gin-gonic/gin"
)

func ListSensorsHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		rows, err := s.ListSensors(ctx)
		if err != nil {
			respondFailure(c, "Failed to fetch sensors", err)
			return
		}
		c.JSON(http.StatusOK, list(rows))
	}
}

type sensorInput struct {
	Name      string           `json:"name" binding:"required,max=200"`
	Type      model.SensorType `json:"type" binding:"required,oneof=tide_gauge weather_station pollution_monitor erosion_sensor"`
	Latitude  string           `json:"latitude" binding:"required,latitude"`
	Longitude string           `json:"longitude" binding:"required,longitude"`
	IsActive  *bool            `json:"isActive"`
}

func CreateSensorHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in sensorInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondInvalid(c, err)
			return
		}
		active := true
		if in.IsActive != nil {
			active = *in.IsActive
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		created, err := s.CreateSensor(ctx, model.Sensor{
			Name:      strings.TrimSpace(in.Name),
			Type:      in.Type,
			Latitude:  strings.TrimSpace(in.Latitude),
			Longitude: strings.TrimSpace(in.Longitude),
			IsActive:  active,
		})
		if err != nil {
			respondFailure(c, "Failed to create sensor", err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func SensorReadingsHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			r    store.TimeRange
			errs []validate.FieldError
		)
		for _, bound := range []struct {
			name string
			dst  **time.Time
		}{{"from", &r.From}, {"to", &r.To}} {
			raw := strings.TrimSpace(c.Query(bound.name))
			if raw == "" {
				continue
			}
			ts, ok := parseTime(raw)
			if !ok {
				errs = append(errs, validate.FieldError{Field: bound.name, Message: "Invalid date"})
				continue
			}
			*bound.dst = &ts
		}
		if len(errs) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Message: "Invalid input", Errors: errs})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		rows, err := s.ListSensorReadings(ctx, c.Param("id"), r)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondErr(c, http.StatusNotFound, "Sensor not found")
				return
			}
			respondFailure(c, "Failed to fetch sensor readings", err)
			return
		}
		c.JSON(http.StatusOK, list(rows))
	}
}

func CreateReadingHandler(readings *ingest.Readings) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ingest.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			respondInvalid(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		saved, err := readings.Record(ctx, in)
		if err != nil {
			var invalid *ingest.InvalidError
			switch {
			case errors.As(err, &invalid):
				c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Message: "Invalid input", Errors: invalid.Fields})
			case errors.Is(err, store.ErrNotFound):
				respondErr(c, http.StatusNotFound, "Sensor not found")
			default:
				respondFailure(c, "Failed to create sensor reading", err)
			}
			return
		}
		c.JSON(http.StatusCreated, saved)
	}
}

// parseTime accepts RFC 3339 timestamps and bare dates, which mean UTC midnight.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
