package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/dispute_triage/backend/internal/ai"
	"github.com/dispute_triage/backend/internal/config"
	"github.com/dispute_triage/backend/internal/http/handlers"
	"github.com/dispute_triage/backend/internal/http/middleware"
	"github.com/dispute_triage/backend/internal/metrics"
	"github.com/dispute_triage/backend/internal/service"

	_ "github.com/dispute_triage/backend/docs"
)

// Store is everything the HTTP layer needs from persistence.
type Store interface {
	handlers.Store
	middleware.Users
}

func Router(cfg config.Config, store Store, triage *service.TriageService, classifier ai.Classifier, m *metrics.Metrics, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	if m != nil {
		r.Use(m.Middleware())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id", middleware.UserIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := cfg.CORSOrigins()
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:      store,
		Triage:     triage,
		Classifier: classifier,
		Metrics:    m,
		Validator:  validator.New(),
		Logger:     logger,
	}

	r.GET("/healthz", h.Healthz)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Identify(store))
	{
		api.POST("/analyze", h.Analyze)
		api.POST("/disputes", h.SubmitDispute)
	}

	customer := api.Group("")
	customer.Use(middleware.RequireUser())
	{
		customer.GET("/disputes", h.MyDisputes)
		customer.GET("/disputes/:id", h.DisputeDetails)
		customer.POST("/disputes/:id/messages", h.PostMessage)
	}

	ops := api.Group("/ops")
	ops.Use(middleware.RequireOps())
	{
		ops.GET("/queue", h.OpsQueue)
		ops.GET("/insights", h.OpsInsights)
		ops.POST("/disputes/:id/reroute", h.Reroute)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/seed", h.AdminSeed)
		admin.POST("/specialists", h.AdminSpecialists)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
