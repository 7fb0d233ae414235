package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/api"
	"github.com/DivyPatel-31/coastwatch/internal/config"
	"github.com/DivyPatel-31/coastwatch/internal/ingest"
	"github.com/DivyPatel-31/coastwatch/internal/metrics"
	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/openapi"
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/DivyPatel-31/coastwatch/internal/validate"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swgui "github.com/swaggest/swgui/v3"
	"go.uber.org/zap"
)

// Deps are the long-lived services the handlers share. Store and Hub are
// required; the rest may be nil.
type Deps struct {
	Store    store.Storage
	Hub      *realtime.Hub
	Bus      realtime.Publisher
	Notifier api.Notifier
	Readings *ingest.Readings
	Recorder *metrics.RedisRecorder
	Stats    *obs.Stats
	Log      *zap.Logger
	Version  string
}

var configureBinding sync.Once

func New(cfg config.Config, deps Deps) *http.Server {
	configureBinding.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			validate.Configure(v)
		}
	})

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	readings := deps.Readings
	if readings == nil {
		readings = ingest.NewReadings(deps.Store, deps.Bus, ingest.WithLogger(log), ingest.WithStats(deps.Stats))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(observabilityMiddleware(deps.Stats, log))
	router.Use(maintenanceMiddleware(cfg.MaintenanceMode))

	router.GET("/openapi.json", func(c *gin.Context) { c.JSON(http.StatusOK, openapi.Spec()) })
	router.GET("/docs/*any", gin.WrapH(swgui.New("coastwatch API", "/openapi.json", "/docs")))

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(obs.NewCollector(deps.Stats).Registry(), promhttp.HandlerOpts{})))

	apiRoot := router.Group("/api")
	{
		apiRoot.GET("/status", api.StatusHandler(api.StatusInfo{
			Version:     deps.Version,
			Backend:     cfg.Backend(),
			Maintenance: cfg.MaintenanceMode,
			DevLogin:    cfg.AuthDevLogin,
		}, deps.Hub, deps.Stats))
		if cfg.AuthDevLogin {
			apiRoot.POST("/auth/dev-token", api.DevTokenHandler(deps.Store, cfg.AuthSecret, cfg.AuthTokenTTL))
		}

		authed := apiRoot.Group("")
		authed.Use(RequireUser(cfg.AuthSecret, deps.Store, log))

		authed.POST("/auth/login", api.LoginHandler(deps.Store))
		authed.GET("/auth/user", api.CurrentUserHandler(deps.Store))
		authed.PATCH("/auth/user/role", api.UpdateRoleHandler(deps.Store))

		authed.GET("/sensors", api.ListSensorsHandler(deps.Store))
		authed.POST("/sensors", api.CreateSensorHandler(deps.Store))
		authed.GET("/sensors/:id/readings", api.SensorReadingsHandler(deps.Store))
		authed.POST("/sensor-readings", api.CreateReadingHandler(readings))

		authed.GET("/alerts", api.ListAlertsHandler(deps.Store))
		authed.GET("/alerts/active", api.ActiveAlertsHandler(deps.Store))
		authed.POST("/alerts", api.CreateAlertHandler(deps.Store, deps.Bus, deps.Notifier))
		authed.PATCH("/alerts/:id/resolve", api.ResolveAlertHandler(deps.Store, deps.Bus))

		authed.GET("/reports", api.ListReportsHandler(deps.Store))
		authed.GET("/reports/mine", api.MyReportsHandler(deps.Store))
		authed.POST("/reports", api.CreateReportHandler(deps.Store, deps.Bus, deps.Notifier))
		authed.PATCH("/reports/:id/status", api.UpdateReportStatusHandler(deps.Store))

		authed.GET("/analytics/stats", api.StatsHandler(deps.Store))
		authed.GET("/analytics/water-level-trends", api.WaterLevelTrendsHandler())
		authed.GET("/analytics/threat-distribution", api.ThreatDistributionHandler())
		authed.GET("/analytics/activity", api.ActivityHandler(deps.Recorder))

		authed.GET("/notifications", api.ListNotificationsHandler(deps.Store))
		authed.PATCH("/notifications/:id/read", api.MarkNotificationReadHandler(deps.Store))

		authed.GET("/ws", api.WebSocketHandler(deps.Hub, realtime.NewUpgrader(cfg.WSAllowedOrigins), cfg.RealtimeSendBuffer))
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
