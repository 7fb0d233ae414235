package api

import (
	"net/http"

	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/gin-gonic/gin"
)

type SystemStatus string

const (
	SystemStatusRunning     SystemStatus = "running"
	SystemStatusMaintenance SystemStatus = "maintenance"
)

// StatusInfo is the static part of /api/status.
type StatusInfo struct {
	Version     string
	Backend     string
	Maintenance bool
	DevLogin    bool
}

func StatusHandler(info StatusInfo, hub *realtime.Hub, stats *obs.Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := SystemStatusRunning
		if info.Maintenance {
			status = SystemStatusMaintenance
		}
		clients, rooms := 0, map[string]int{}
		if hub != nil {
			clients = hub.ClientCount()
			rooms = hub.Rooms()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"version":   info.Version,
			"backend":   info.Backend,
			"dev_login": info.DevLogin,
			"realtime": gin.H{
				"clients": clients,
				"rooms":   rooms,
			},
			"stats": stats.Snapshot(),
		})
	}
}
