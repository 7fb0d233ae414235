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

func ListReportsHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		rows, err := s.ListReports(ctx)
		if err != nil {
			respondFailure(c, "Failed to fetch reports", err)
			return
		}
		c.JSON(http.StatusOK, list(rows))
	}
}

func MyReportsHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userIDFromContext(c)
		if !ok {
			Unauthorized(c)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		rows, err := s.ListReportsByUser(ctx, uid)
		if err != nil {
			respondFailure(c, "Failed to fetch user reports", err)
			return
		}
		c.JSON(http.StatusOK, list(rows))
	}
}

// reportInput carries no userId: the owner is always the caller.
type reportInput struct {
	Type        model.ReportType `json:"type" binding:"required,oneof=pollution erosion wildlife storm other"`
	Title       string           `json:"title" binding:"required,max=200"`
	Description string           `json:"description" binding:"required,max=4000"`
	Location    string           `json:"location" binding:"required,max=200"`
	Latitude    *string          `json:"latitude" binding:"omitempty,latitude"`
	Longitude   *string          `json:"longitude" binding:"omitempty,longitude"`
	ImageURL    *string          `json:"imageUrl" binding:"omitempty,url"`
}

func CreateReportHandler(s store.Storage, bus realtime.Publisher, notifier Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userIDFromContext(c)
		if !ok {
			Unauthorized(c)
			return
		}
		var in reportInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondInvalid(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		created, err := s.CreateReport(ctx, model.Report{
			UserID:      uid,
			Type:        in.Type,
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			Location:    strings.TrimSpace(in.Location),
			Latitude:    trimmed(in.Latitude),
			Longitude:   trimmed(in.Longitude),
			ImageURL:    trimmed(in.ImageURL),
		})
		if err != nil {
			respondFailure(c, "Failed to create report", err)
			return
		}
		if bus != nil {
			bus.Publish(ctx, realtime.NewReport{Report: created})
		}
		if notifier != nil {
			notifier.ReportSubmitted(ctx, created)
		}
		c.JSON(http.StatusCreated, created)
	}
}

type reportStatusInput struct {
	Status model.ReportStatus `json:"status" binding:"required,oneof=pending verified resolved dismissed"`
}

// UpdateReportStatusHandler is the moderation path. Any status may follow any
// other.
func UpdateReportStatusHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in reportStatusInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondInvalid(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		updated, err := s.UpdateReportStatus(ctx, c.Param("id"), in.Status)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondErr(c, http.StatusNotFound, "Report not found")
				return
			}
			respondFailure(c, "Failed to update report status", err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}
