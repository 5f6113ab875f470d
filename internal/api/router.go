// Package api wires together all HTTP routes for the CRM activity backend.
//
// Route grouping philosophy:
//   - /health and /version are public so load balancers and deploy tooling can
//     probe the service without credentials.
//   - /api/auth/login is public but rate limited aggressively: it is the only
//     endpoint that accepts a password.
//   - Everything under /api/system-activities requires authentication. The
//     activity log names users and client IP addresses, so even read access is
//     gated behind a valid session.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/nexocrm/nexo-backend/internal/activity"
	"github.com/nexocrm/nexo-backend/internal/api/activities"
	"github.com/nexocrm/nexo-backend/internal/api/authapi"
	"github.com/nexocrm/nexo-backend/internal/config"
	"github.com/nexocrm/nexo-backend/internal/db/repositories"
	"github.com/nexocrm/nexo-backend/internal/jobs"
	"github.com/nexocrm/nexo-backend/internal/middleware"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	statsPoller  *jobs.StatsPoller
	shipper      activity.Shipper
	redisClient  *redis.Client
	rateLimiters []middleware.Limiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.statsPoller != nil {
		bg.statsPoller.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("failed to close activity shipper", "error", err)
		}
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	activityRepo := repositories.NewActivityRepository(sqlx.NewDb(db, "postgres"))

	// Initialize the activity shipper from config. A nil shipper simply means
	// entries stay in the database only.
	shipper, err := activity.NewShipper(shipperConfigs(cfg))
	if err != nil {
		log.Fatalf("Failed to initialize activity shipper: %v", err)
	}

	recorder := activity.NewRecorder(activityRepo, userRepo, shipper)
	service := activity.NewService(activityRepo)

	// Start the stats poller so the activity gauges track table growth
	statsPoller := jobs.NewStatsPoller(activityRepo)
	interval := cfg.Activity.StatsPollIntervalMinutes
	if interval <= 0 {
		interval = 5
	}
	statsPoller.Start(context.Background(), interval)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize rate limiters. When Redis is configured the limits are shared
	// across instances; otherwise each instance keeps its own buckets.
	var redisClient *redis.Client
	newLimiter := func(c middleware.RateLimitConfig) middleware.Limiter {
		return middleware.NewRateLimiter(c)
	}
	if cfg.Security.RateLimiting.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Security.RateLimiting.Redis.Address,
			Password: cfg.Security.RateLimiting.Redis.Password,
			DB:       cfg.Security.RateLimiting.Redis.DB,
		})
		newLimiter = func(c middleware.RateLimitConfig) middleware.Limiter {
			return middleware.NewRedisRateLimiter(redisClient, c)
		}
		slog.Info("rate limiting backed by redis", "address", cfg.Security.RateLimiting.Redis.Address)
	}

	authRateLimiter := newLimiter(middleware.AuthRateLimitConfig())
	generalConfig := middleware.DefaultRateLimitConfig()
	if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
		generalConfig.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
	}
	if cfg.Security.RateLimiting.Burst > 0 {
		generalConfig.BurstSize = cfg.Security.RateLimiting.Burst
	}
	generalRateLimiter := newLimiter(generalConfig)

	// Initialize handlers
	authHandler := authapi.NewHandler(userRepo, recorder, cfg.Auth.SessionDuration)
	activitiesHandler := activities.NewHandler(recorder, service, activityRepo)

	apiGroup := router.Group("/api")
	{
		// Public authentication endpoints (no auth required, but rate limited)
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/login",
				middleware.RateLimitMiddleware(authRateLimiter),
				authHandler.Login)

			authedAuth := authGroup.Group("")
			authedAuth.Use(middleware.AuthMiddleware(userRepo))
			{
				authedAuth.POST("/logout", authHandler.Logout)
				authedAuth.GET("/me", authHandler.Me)
			}
		}

		// Activity log endpoints (authenticated only). The general limiter can
		// be disabled in config; the login limiter above cannot, since it is a
		// brute-force control rather than a capacity one.
		activitiesGroup := apiGroup.Group("/system-activities")
		activitiesGroup.Use(middleware.AuthMiddleware(userRepo))
		if cfg.Security.RateLimiting.Enabled {
			activitiesGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		}
		{
			activitiesGroup.POST("", activitiesHandler.Create)
			activitiesGroup.GET("", activitiesHandler.List)
			activitiesGroup.GET("/stats", activitiesHandler.Stats)
			activitiesGroup.GET("/entity/:type/:id", activitiesHandler.EntityTimeline)
			activitiesGroup.GET("/user/:id", activitiesHandler.UserTimeline)
		}
	}

	bg := &BackgroundServices{
		statsPoller:  statsPoller,
		shipper:      shipper,
		redisClient:  redisClient,
		rateLimiters: []middleware.Limiter{authRateLimiter, generalRateLimiter},
	}

	return router, bg
}

// shipperConfigs converts the config file's shipper entries into the activity
// package's config type. Interval fields are expressed in whole seconds in the
// YAML and as durations internally.
func shipperConfigs(cfg *config.Config) []activity.ShipperConfig {
	out := make([]activity.ShipperConfig, 0, len(cfg.Activity.Shippers))
	for _, sc := range cfg.Activity.Shippers {
		conv := activity.ShipperConfig{
			Enabled: sc.Enabled,
			Type:    sc.Type,
		}
		if sc.Webhook != nil {
			conv.Webhook = &activity.WebhookConfig{
				URL:           sc.Webhook.URL,
				Headers:       sc.Webhook.Headers,
				Timeout:       time.Duration(sc.Webhook.TimeoutSecs) * time.Second,
				BatchSize:     sc.Webhook.BatchSize,
				FlushInterval: time.Duration(sc.Webhook.FlushInterval) * time.Second,
			}
		}
		if sc.File != nil {
			conv.File = &activity.FileConfig{
				Path:       sc.File.Path,
				MaxSizeMB:  sc.File.MaxSizeMB,
				MaxBackups: sc.File.MaxBackups,
			}
		}
		out = append(out, conv)
	}
	return out
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
