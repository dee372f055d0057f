// Package main is the entry point for the TrafficGuard report server.
// It provides a REST API for traffic-violation report submission,
// automated visual detection of violations in uploaded evidence,
// lifecycle management, and a real-time event stream for viewers.
//
// Architecture:
//   - Evidence is validated and staged before anything else runs
//   - The vision worker is an external process; its failures never
//     block report creation
//   - Reverse geocoding is best-effort enrichment
//   - Reports persist in PostgreSQL with a forward-only status lifecycle
//   - Creation events fan out to SSE subscribers via a Redis backplane
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/trafficguard/report-server/internal/config"
	"github.com/trafficguard/report-server/internal/database"
	"github.com/trafficguard/report-server/internal/handlers"
	"github.com/trafficguard/report-server/internal/middleware"
	"github.com/trafficguard/report-server/internal/services"
	"go.uber.org/zap"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	sugar.Infow("Starting TrafficGuard Report Server",
		"port", cfg.Port,
		"env", cfg.Environment,
	)

	// Initialize database connection pool
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis backplane is optional in development; events degrade to
	// single-instance fan-out without it.
	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		sugar.Warnw("Redis unavailable, running without backplane", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	reportSvc := services.NewReportService(db, sugar)
	auditSvc := services.NewAuditService(db, sugar)
	authSvc := services.NewAuthService(db, cfg.JWTSecret, sugar)
	detectorSvc := services.NewDetectorService(cfg.PythonBin, cfg.DetectorScript, cfg.DetectorTimeout, sugar)
	geocodeSvc := services.NewGeocodeService(cfg.GeocodeBaseURL, cfg.GeocodeTimeout, rdb, sugar)
	broadcaster := services.NewBroadcaster(rdb, sugar)
	intakeSvc := services.NewIntakeService(
		reportSvc, detectorSvc, geocodeSvc, broadcaster, auditSvc,
		cfg.UploadDir, cfg.StagingDir,
		cfg.MaxUploadBytes, cfg.MaxDetectBytes,
		sugar,
	)
	retention := services.NewRetentionWorker(cfg.StagingDir, cfg.StagingMaxAge, sugar)

	// Background work: backplane consumer and staging sweeper
	go broadcaster.Start(ctx)
	go retention.Start(ctx, cfg.RetentionSweep)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authSvc, sugar)
	reportHandler := handlers.NewReportHandler(intakeSvc, reportSvc, auditSvc, broadcaster, sugar)
	detectHandler := handlers.NewDetectHandler(intakeSvc, sugar)
	eventsHandler := handlers.NewEventsHandler(broadcaster, sugar)
	auditHandler := handlers.NewAuditHandler(auditSvc, sugar)
	healthHandler := handlers.NewHealthHandler(db, rdb, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limiting
	r.Use(middleware.RateLimit(cfg.RateLimitRPM))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Auth endpoints (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Everything below requires a resolved caller identity
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.JWTSecret))

			// Report endpoints
			r.Route("/reports", func(r chi.Router) {
				r.With(chimw.Timeout(2*time.Minute)).Post("/", reportHandler.Submit)
				r.Get("/", reportHandler.List)
				r.Get("/count", reportHandler.Count)
				r.Get("/{id}", reportHandler.Get)
				r.With(middleware.RequireRole("officer", "admin")).
					Post("/{id}/status", reportHandler.Transition)
			})

			// Detection-only endpoint (no persistence)
			r.With(chimw.Timeout(2*time.Minute)).Post("/detect", detectHandler.Detect)

			// Real-time report event stream (long-lived, no timeout)
			r.Get("/events", eventsHandler.Stream)

			// Audit trail (reviewers only)
			r.Route("/activity", func(r chi.Router) {
				r.Use(middleware.RequireRole("officer", "admin"))
				r.Get("/recent", auditHandler.Recent)
				r.Get("/report/{id}", auditHandler.ByReport)
			})

			// Analytics endpoints (admin only)
			r.Route("/analytics", func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))
				r.Get("/trends", reportHandler.Trends)
				r.Get("/types", reportHandler.Types)
				r.Get("/statuses", reportHandler.Statuses)
			})
		})
	})

	// Serve stored evidence files
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	// Create HTTP server. No WriteTimeout: the event stream holds its
	// response open indefinitely.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}
