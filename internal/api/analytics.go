package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/metrics"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/gin-gonic/gin"
)

// Series is a labelled chart series.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// The dashboard charts are fixed until a trend pipeline exists.
var (
	waterLevelTrends = Series{
		Labels: []string{"00:00", "04:00", "08:00", "12:00", "16:00", "20:00", "24:00"},
		Values: []float64{1.2, 1.8, 2.1, 2.3, 2.0, 1.7, 1.5},
	}
	threatDistribution = Series{
		Labels: []string{"Storm Surge", "Pollution", "Erosion", "Algal Bloom"},
		Values: []float64{35, 25, 20, 20},
	}
)

func StatsHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		st, err := s.Stats(ctx)
		if err != nil {
			respondFailure(c, "Failed to fetch stats", err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func WaterLevelTrendsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, waterLevelTrends)
	}
}

func ThreatDistributionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, threatDistribution)
	}
}

// ActivityHandler reports today's counters, all-time event totals and a
// trailing window of active sensors. Without Redis every counter is zero and enabled is false.
func ActivityHandler(recorder *metrics.RedisRecorder) gin.HandlerFunc {
	kinds := make([]string, 0, len(realtime.Kinds()))
	for _, k := range realtime.Kinds() {
		kinds = append(kinds, string(k))
	}
	return func(c *gin.Context) {
		days := parseLimit(c.Query("days"), 7, 90)
		now := time.Now().UTC()
		start := now.AddDate(0, 0, -(days - 1))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		today, enabled, err := recorder.Today(ctx, now, kinds)
		if err != nil {
			respondFailure(c, "Failed to fetch activity", err)
			return
		}
		totals, err := recorder.EventTotals(ctx, kinds)
		if err != nil {
			respondFailure(c, "Failed to fetch activity", err)
			return
		}
		series, err := recorder.ActiveSensorSeries(ctx, start, now, "day")
		if err != nil {
			respondFailure(c, "Failed to fetch activity", err)
			return
		}
		top, err := recorder.ReadingsBySensor(ctx, start, now, 10)
		if err != nil {
			respondFailure(c, "Failed to fetch activity", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"enabled":            enabled,
			"date":               today.Date,
			"events":             today.Events,
			"totals":             totals,
			"readings":           today.Readings,
			"activeSensors":      today.ActiveSensors,
			"activeSensorSeries": list(series),
			"topSensors":         list(top),
		})
	}
}

func parseLimit(s string, def, max int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
