package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
	"dispatch/internal/ws"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler   *handler.TripHandler
	WorkerHandler *handler.WorkerHandler
	Hub           *ws.Hub
	RedisClient   *redis.Client
	NewRelicApp   *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Worker websocket endpoint.
	router.GET("/ws", func(c *gin.Context) {
		deps.Hub.Attach(c.Writer, c.Request)
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.POST("/taxi", deps.TripHandler.CreateTaxi)
			trips.POST("/delivery", deps.TripHandler.CreateDelivery)
			trips.POST("/reservation", deps.TripHandler.CreateReservation)
			trips.POST("/:id/accept", deps.TripHandler.Accept)
			trips.POST("/:id/reject", deps.TripHandler.Reject)
			trips.POST("/:id/retry", deps.TripHandler.Retry)
			trips.GET("/:id/status", deps.TripHandler.Status)
			trips.POST("/:id/status", deps.TripHandler.UpdateStatus)
		}

		// Worker routes.
		workers := v1.Group("/workers")
		{
			workers.POST("/:id/location", deps.WorkerHandler.UpdateLocation)
			workers.GET("/:id/location", deps.WorkerHandler.Location)
			workers.POST("/panic", deps.WorkerHandler.Panic)
		}
	}

	return router
}
