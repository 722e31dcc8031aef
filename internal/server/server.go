// Package server assembles the gin engine: middleware chain, the auth gate, every
// feature's routes and the operational endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mindsage/internal/auth"
	"mindsage/internal/community"
	"mindsage/internal/config"
	"mindsage/internal/docstore"
	"mindsage/internal/events"
	"mindsage/internal/metrics"
	"mindsage/internal/policy"
	"mindsage/internal/respond"
	"mindsage/internal/storage"
	"mindsage/internal/therapists"
	"mindsage/internal/users"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Deps holds everything the router needs. Cache, Storage, Publisher, Metrics and
// Health are optional.
type Deps struct {
	Logger      *slog.Logger
	Gate        *auth.Gate
	Policy      *policy.Table
	Store       docstore.Store
	Cache       therapists.Cache
	Storage     storage.Service
	Publisher   events.Publisher
	Metrics     *metrics.Metrics
	CORSOrigins []string
	Health      map[string]HealthCheck
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Policy == nil {
		d.Policy = policy.ServerTable()
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"http://localhost:3000"}
	}
	respond.RegisterValidation()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logging(d.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader, respond.DegradedHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware(respond.DegradedHeader))
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/health", healthHandler(d.Health))

	api := r.Group("")
	api.Use(d.Gate.Enforce(d.Policy))

	api.GET("/api/auth-check", d.Gate.AuthCheck)

	community.RegisterRoutes(api, community.NewHandler(
		community.NewService(community.NewRepository(d.Store), d.Publisher, d.Logger),
		d.Logger,
	))

	therapists.RegisterRoutes(api, therapists.NewHandler(
		therapists.NewService(therapists.NewRepository(d.Store), d.Cache, d.Storage, d.Logger),
		d.Logger,
	))

	users.RegisterRoutes(api, users.NewHandler(users.NewService(d.Store), d.Logger))

	return r
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "up"
		components := make(map[string]gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = "degraded"
				components[name] = gin.H{"status": "down", "error": err.Error()}
				continue
			}
			components[name] = gin.H{"status": "up"}
		}

		c.JSON(http.StatusOK, gin.H{"status": status, "components": components})
	}
}

// New wraps handler in an http.Server with tracing and the configured timeouts.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           otelhttp.NewHandler(handler, "mindsage-api"),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
