package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinilab/labtrail/internal/config"
	"github.com/clinilab/labtrail/internal/handler"
	"github.com/clinilab/labtrail/internal/middleware"
	"github.com/clinilab/labtrail/internal/pkg/logger"
	"github.com/clinilab/labtrail/internal/realtime"
	"github.com/clinilab/labtrail/internal/repository"
	"github.com/clinilab/labtrail/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	auditRepo := repository.NewPostgresAuditRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	appointmentRepo := repository.NewPostgresAppointmentRepo(db)

	// Recent-activity mirror (Redis > none)
	var mirror service.AuditMirror
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("Connected to Redis")
			mirror = repository.NewRedisAuditMirror(redisClient, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax)
		} else {
			logger.Error("Failed to connect to Redis, audit mirror disabled", "error", err)
		}
	}

	// 3. Initialize Core Services
	hub := realtime.NewHub()
	pusher := service.NewRealtimePusher(
		cfg.Notify.BaseURL,
		cfg.Notify.APIKey,
		cfg.Notify.QueueSize,
		time.Duration(cfg.Notify.TimeoutMs)*time.Millisecond,
		hub,
	)
	notificationSvc := service.NewNotificationService(notificationRepo, pusher)
	auditSvc := service.NewAuditService(auditRepo, mirror, notificationSvc)
	appointmentSvc := service.NewAppointmentService(appointmentRepo)

	stopRetention := auditSvc.StartRetentionLoop(
		time.Duration(cfg.Database.CleanupIntervalMinutes)*time.Minute,
		time.Duration(cfg.Database.AuditRetentionDays)*24*time.Hour,
	)

	// 4. Initialize Handlers
	auditHandler := handler.NewAuditHandler(auditSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	appointmentHandler := handler.NewAppointmentHandler(appointmentSvc)
	realtimeHandler := handler.NewRealtimeHandler(hub)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(auditSvc))

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "labtrail"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API Routes
	limiters := middleware.NewRateLimiters(cfg.RateLimit.QPS, cfg.RateLimit.Burst)
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg))
	api.Use(middleware.RateLimitMiddleware(limiters))
	{
		api.GET("/audit-logs", auditHandler.List)

		api.GET("/notifications", notificationHandler.List)
		api.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		api.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		api.PUT("/notifications/:id/dismiss", notificationHandler.MarkDismissed)

		api.POST("/clinic/appointments", appointmentHandler.Create)
		api.POST("/clinic/appointments/:id/resend", appointmentHandler.Resend)

		api.GET("/ws/notifications", realtimeHandler.Subscribe)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("labtrail started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	// Drain background workers only after in-flight requests have finished
	stopRetention()
	pusher.Close()

	logger.Info("Server exiting")
}
