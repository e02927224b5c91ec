package main

import (
	"quota-service/internal/handler"
	"quota-service/internal/middleware"
	"quota-service/internal/notifier"
	"quota-service/internal/quota"
	"quota-service/pkg/config"
	"quota-service/pkg/database"
	"quota-service/pkg/jwtutil"
	"quota-service/pkg/logger"
	"quota-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting quota service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.Initialize(database.DBConfig{
		DSN:             cfg.DB.GetDSN(),
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		LogLevel:        cfg.DB.LogLevel,
	}); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Select the notification sink; delivery failures never fail core operations
	var sink notifier.Sink = notifier.NoopSink{}
	switch cfg.Notifier.Kind {
	case "webhook":
		sink = notifier.NewWebhookSink(cfg.Notifier.WebhookURL, cfg.Notifier.WebhookTimeout, log)
		log.Info("Webhook notification sink configured", zap.String("url", cfg.Notifier.WebhookURL))
	case "amqp":
		amqpSink, err := notifier.NewAMQPSink(cfg.Notifier.AMQPURL, cfg.Notifier.AMQPExchange, log)
		if err != nil {
			// Best-effort collaborator: run without it rather than refusing to start
			log.Warn("AMQP sink unavailable, events will be dropped", zap.Error(err))
		} else {
			defer amqpSink.Close()
			sink = amqpSink
			log.Info("AMQP notification sink configured", zap.String("exchange", cfg.Notifier.AMQPExchange))
		}
	default:
		log.Info("No notification sink configured")
	}

	// Capacity policy for the used-versus-total rule
	var policy quota.CapacityPolicy
	if cfg.Quota.OverusePolicy == "strict" {
		policy = quota.StrictPolicy()
	} else {
		policy = quota.WarnPolicy(log)
	}

	// Wire handlers to the core services
	handler.InitDefault(sink, policy)
	log.Info("Quota core initialized", zap.String("overuse_policy", cfg.Quota.OverusePolicy))

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// API routes - all require a session token from the identity provider
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// Module access resolution
	modules := api.Group("/modules")
	modules.GET("", handler.ListModules)
	modules.GET("/:name/access", handler.CheckModuleAccess)

	// Accounts and quota ledger
	accounts := api.Group("/accounts")
	accounts.POST("", handler.CreateAccount)
	accounts.GET("", handler.ListAccounts)
	accounts.GET("/:id", handler.GetAccount)
	accounts.PATCH("/:id", handler.UpdateAccount)
	accounts.GET("/:id/quota", handler.GetAccountQuota)
	accounts.GET("/:id/quota/:category", handler.GetAccountQuotaCategory)
	accounts.PUT("/:id/quota/:category", handler.SetQuotaTotal, middleware.RequireAdmin)
	accounts.PUT("/:id/quota/:category/used", handler.SetQuotaUsed, middleware.RequireAdmin)
	accounts.POST("/:id/awards", handler.AddAward, middleware.RequireAdmin)
	accounts.POST("/:id/partnership-type", handler.AssignPartnershipType, middleware.RequireAdmin)

	// Slot-request workflow
	requests := api.Group("/slot-requests")
	requests.POST("", handler.SubmitSlotRequest)
	requests.GET("", handler.ListSlotRequests)
	requests.GET("/:id", handler.GetSlotRequest)
	requests.POST("/:id/approve", handler.ApproveSlotRequest, middleware.RequireAdmin)
	requests.POST("/:id/decline", handler.DeclineSlotRequest, middleware.RequireAdmin)

	// Partnership templates and cascades
	templates := api.Group("/partnership-types")
	templates.GET("", handler.ListPartnershipTypes)
	templates.GET("/:name", handler.GetPartnershipType)
	templates.POST("", handler.CreatePartnershipType, middleware.RequireAdmin)
	templates.PUT("/:name", handler.UpdatePartnershipType, middleware.RequireAdmin)
	templates.DELETE("/:name", handler.DeletePartnershipType, middleware.RequireAdmin)

	// Module settings administration
	settings := api.Group("/settings")
	settings.GET("/modules", handler.ListModuleSettings, middleware.RequireAdmin)
	settings.PUT("/modules", handler.PutModuleSetting, middleware.RequireAdmin)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
