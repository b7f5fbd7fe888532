package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"tremor-monitor-backend/config"
	"tremor-monitor-backend/internal/auth"
	"tremor-monitor-backend/internal/ingest"
	"tremor-monitor-backend/internal/mw"
	"tremor-monitor-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, authorizer auth.Authorizer, ingestSvc *ingest.Service) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, authorizer, ingestSvc)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Session binding
		api.POST("/sessions", handler.CreateSession)
		api.POST("/sessions/:id/end", handler.EndSession)
		api.GET("/sessions/:id", handler.GetSession)

		// Device registry
		api.GET("/devices", handler.ListDevices)
		api.POST("/devices", handler.RegisterDevice)
		api.PATCH("/devices/:id/status", handler.SetDeviceStatus)
		api.GET("/devices/:id/current-session", handler.GetCurrentSession)

		// Ingest
		api.POST("/devices/:id/samples", handler.SubmitSamples)

		// Queries. The incremental poll endpoint is never cached: its
		// contract is monotonic per-client reads.
		api.GET("/analysis", handler.GetAnalysis)
		api.GET("/analysis/latest", handler.GetLatestAnalysis)
		api.GET("/statistics", caching, handler.GetStatistics)
	}

	return r
}
