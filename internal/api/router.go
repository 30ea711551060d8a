package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/plumeapp/plume/internal/cache"
	"github.com/plumeapp/plume/internal/handlers"
	"github.com/plumeapp/plume/internal/middleware"
	"github.com/plumeapp/plume/internal/permissions"
	"github.com/plumeapp/plume/internal/services"
)

// RateLimitConfig tunes the per-client request budget.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
// The cache store may be nil; everything then runs against the database with
// in-process rate limiting.
func NewRouter(db *gorm.DB, store cache.Store, rl RateLimitConfig) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}

	resolver, err := permissions.NewResolver(db, store)
	if err != nil {
		return nil, err
	}
	evaluator, err := permissions.NewEvaluator(db, store, resolver)
	if err != nil {
		return nil, err
	}
	invalidator, err := permissions.NewInvalidator(db, store)
	if err != nil {
		return nil, err
	}
	visibility, err := permissions.NewVisibility(db, resolver)
	if err != nil {
		return nil, err
	}

	userSvc, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	groupSvc, err := services.NewGroupService(db, invalidator)
	if err != nil {
		return nil, err
	}
	postSvc, err := services.NewPostService(db, visibility)
	if err != nil {
		return nil, err
	}
	permSvc, err := services.NewPermissionService(db, evaluator, invalidator, userSvc, groupSvc)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	rateStore := middleware.NewCacheRateStore(store)
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}
	r.Use(middleware.RateLimit(rateStore, rl.MaxRequests, rl.Window))

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	api := r.Group("/api")
	registerUserRoutes(api, handlers.NewUserHandler(userSvc))
	registerGroupRoutes(api, handlers.NewGroupHandler(groupSvc))
	registerPostRoutes(api, handlers.NewPostHandler(postSvc), handlers.NewPermissionHandler(permSvc))

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
