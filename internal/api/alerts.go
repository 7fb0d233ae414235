package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/gin-gonic/gin"
)

// Notifier turns new alerts and reports into per-user notifications.
type Notifier interface {
	AlertRaised(ctx context.Context, a model.Alert) int
	ReportSubmitted(ctx context.Context, r model.Report) int
}

func ListAlertsHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		rows, err := s.ListAlerts(ctx)
		if err != nil {
			respondFailure(c, "Failed to fetch alerts", err)
			return
		}
		c.JSON(http.StatusOK, list(rows))
	}
}

func ActiveAlertsHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		rows, err := s.ListActiveAlerts(ctx)
		if err != nil {
			respondFailure(c, "Failed to fetch active alerts", err)
			return
		}
		c.JSON(http.StatusOK, list(rows))
	}
}

type alertInput struct {
	Type        model.AlertType `json:"type" binding:"required,oneof=storm_surge cyclone erosion pollution algal_bloom all_clear"`
	Severity    model.Severity  `json:"severity" binding:"required,oneof=low medium high critical"`
	Title       string          `json:"title" binding:"required,max=200"`
	Description string          `json:"description" binding:"max=4000"`
	Location    string          `json:"location" binding:"required,max=200"`
	Latitude    *string         `json:"latitude" binding:"omitempty,latitude"`
	Longitude   *string         `json:"longitude" binding:"omitempty,longitude"`
}

func CreateAlertHandler(s store.Storage, bus realtime.Publisher, notifier Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in alertInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondInvalid(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		created, err := s.CreateAlert(ctx, model.Alert{
			Type:        in.Type,
			Severity:    in.Severity,
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			Location:    strings.TrimSpace(in.Location),
			Latitude:    trimmed(in.Latitude),
			Longitude:   trimmed(in.Longitude),
		})
		if err != nil {
			respondFailure(c, "Failed to create alert", err)
			return
		}
		if bus != nil {
			bus.Publish(ctx, realtime.NewAlert{Alert: created})
		}
		if notifier != nil {
			notifier.AlertRaised(ctx, created)
		}
		c.JSON(http.StatusCreated, created)
	}
}

// ResolveAlertHandler publishes alert-resolved on every successful call,
// including repeats on an already resolved alert.
func ResolveAlertHandler(s store.Storage, bus realtime.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		resolved, err := s.ResolveAlert(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondErr(c, http.StatusNotFound, "Alert not found")
				return
			}
			respondFailure(c, "Failed to resolve alert", err)
			return
		}
		if bus != nil {
			bus.Publish(ctx, realtime.AlertResolved{ID: resolved.ID})
		}
		respondMessage(c, "Alert resolved")
	}
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
