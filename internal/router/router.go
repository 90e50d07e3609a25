package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/handler"
	"github.com/noah-isme/tutoring-scheduler-api/internal/middleware"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/internal/service"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/config"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutoring-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutoring-scheduler-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by New.
type Handlers struct {
	Sessions     *handler.SessionHandler
	Availability *handler.AvailabilityHandler
	Export       *handler.ExportHandler
	Metrics      *handler.MetricsHandler
}

// Options carries the cross-cutting collaborators of the router.
type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Auth    middleware.TokenValidator
	Metrics *service.MetricsService
}

var admin = string(models.RoleAdmin)

// New builds the gin engine with the full route table.
func New(opts Options, h Handlers) *gin.Engine {
	cfg := opts.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if opts.Logger != nil {
		r.Use(logger.GinMiddleware(opts.Logger))
	}
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics, "/metrics", "/health", "/ready"))
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(opts.Auth))

	sessions := api.Group("/sessions")
	sessions.POST("", h.Sessions.Book)
	sessions.POST("/check", h.Sessions.Check)
	sessions.GET("", h.Sessions.List)
	sessions.GET("/:id", h.Sessions.Get)
	sessions.PUT("/:id/schedule", h.Sessions.Reschedule)
	sessions.POST("/:id/start", h.Sessions.Start)
	sessions.POST("/:id/end", h.Sessions.End)
	sessions.POST("/:id/no-show", h.Sessions.NoShow)
	sessions.POST("/:id/cancel", h.Sessions.Cancel)
	sessions.GET("/:id/refund-quote", h.Sessions.RefundQuote)

	tutors := api.Group("/tutors/:id")
	tutors.GET("/availability", h.Availability.List)
	tutors.PUT("/availability", middleware.RBAC(admin, middleware.Self), h.Availability.Replace)
	tutors.GET("/open-slots", h.Availability.OpenSlots)
	tutors.GET("/sessions/export", middleware.RBAC(admin, middleware.Self), h.Export.Schedule)

	return r
}
