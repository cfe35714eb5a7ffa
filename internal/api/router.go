package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/app"
	iauth "github.com/linkupapp/linkup/internal/auth"
	"github.com/linkupapp/linkup/internal/handlers"
	"github.com/linkupapp/linkup/internal/middleware"
	"github.com/linkupapp/linkup/internal/realtime"
	"github.com/linkupapp/linkup/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, hub *realtime.Hub, notifications *services.NotificationService) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// Realtime stream authenticates itself from the token query parameter,
	// so it stays outside the auth group.
	realtimeHandler := handlers.NewRealtimeHandler(hub, jwt)
	r.GET("/api/realtime", realtimeHandler.Stream)

	// Protected routes
	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	// Profiles
	profileHandler, err := handlers.NewProfileHandler(db)
	if err != nil {
		return nil, err
	}
	api.GET("/profiles/:id", profileHandler.Get)
	api.PATCH("/profiles/me", profileHandler.UpdateMine)

	// Relationships
	relationshipHandler, err := handlers.NewRelationshipHandler(db, notifications, hub)
	if err != nil {
		return nil, err
	}
	relationships := api.Group("/relationships")
	{
		relationships.POST("/connect", relationshipHandler.Connect)
		relationships.POST("/:id/respond", relationshipHandler.Respond)
		relationships.POST("/block", relationshipHandler.Block)
		relationships.POST("/:id/unblock", relationshipHandler.Unblock)
		relationships.GET("/:id", relationshipHandler.Get)
	}

	// Suggestions
	suggestionHandler, err := handlers.NewSuggestionHandler(db)
	if err != nil {
		return nil, err
	}
	api.GET("/suggestions", suggestionHandler.List)

	// Query facade
	queryHandler, err := handlers.NewQueryHandler(db)
	if err != nil {
		return nil, err
	}
	api.GET("/matches", queryHandler.Matches)
	api.GET("/requests/incoming", queryHandler.PendingIncoming)
	api.GET("/requests/outgoing", queryHandler.PendingOutgoing)
	api.GET("/blocked", queryHandler.Blocked)

	// Notifications
	notificationHandler, err := handlers.NewNotificationHandler(notifications)
	if err != nil {
		return nil, err
	}
	notificationRoutes := api.Group("/notifications")
	{
		notificationRoutes.GET("", notificationHandler.List)
		notificationRoutes.GET("/unread_count", notificationHandler.UnreadCount)
		notificationRoutes.POST("/:id/read", notificationHandler.MarkRead)
		notificationRoutes.POST("/read_all", notificationHandler.MarkAllRead)
	}

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
