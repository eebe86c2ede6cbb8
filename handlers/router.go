package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendance-backend/middleware"
)

type RouterConfig struct {
	Checkin    *CheckinHandler
	Events     *EventHandler
	Attendance *AttendanceHandler
	Health     *HealthHandler

	Logger      *zap.Logger
	CORSOrigins []string
	// AuthSecret signs admin tokens; empty leaves the admin routes open.
	AuthSecret string

	MetricsPath    string
	MetricsHandler http.Handler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(cfg.Logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api/v1")
	{
		// Participant routes
		api.POST("/checkin", cfg.Checkin.CheckIn)
		api.GET("/checkin/status", cfg.Checkin.Status)
		api.GET("/courses", cfg.Checkin.Courses)

		api.GET("/health/store", cfg.Health.Store)

		admin := api.Group("", middleware.AdminAuth(cfg.AuthSecret))
		{
			admin.POST("/events", cfg.Events.CreateEvent)
			admin.GET("/events", cfg.Events.GetEvents)
			admin.GET("/events/:id", cfg.Events.GetEvent)
			admin.PUT("/events/:id/activate", cfg.Events.ActivateEvent)
			admin.PUT("/events/:id/timeout", cfg.Events.TimeoutEvent)

			admin.GET("/attendance", cfg.Attendance.GetAttendance)
		}
	}

	router.GET("/health", cfg.Health.Health)
	if cfg.MetricsHandler != nil && cfg.MetricsPath != "" {
		router.GET(cfg.MetricsPath, gin.WrapH(cfg.MetricsHandler))
	}

	return router
}
