package router

import (
	"net/http"

	"trafficwaker/app/handler"
	"trafficwaker/app/middleware"

	"github.com/gin-gonic/gin"
)

// Router Router
type Router struct {
	wakeHandler    *handler.WakeHandler
	wakerHandler   *handler.WakerHandler
	metricsHandler http.Handler
	apiKey         string
}

// NewRouter creates a new Router. metricsHandler may be nil.
func NewRouter(wakeHandler *handler.WakeHandler, wakerHandler *handler.WakerHandler, metricsHandler http.Handler, apiKey string) *Router {
	return &Router{
		wakeHandler:    wakeHandler,
		wakerHandler:   wakerHandler,
		metricsHandler: metricsHandler,
		apiKey:         apiKey,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger("/metrics", "/health"))

	// Traffic signal: any method, no auth (called by the ingress default backend)
	engine.Any("/wake", r.wakeHandler.Wake)

	// Reconciler admin API
	if r.wakerHandler != nil {
		api := engine.Group("/api/v1/waker")
		api.Use(middleware.AuthMiddleware(r.apiKey))
		{
			api.GET("/status", r.wakerHandler.GetStatus)
			api.GET("/events", r.wakerHandler.GetEvents)

			// Control
			api.POST("/enable", r.wakerHandler.Enable)
			api.POST("/disable", r.wakerHandler.Disable)
			api.POST("/reconcile", r.wakerHandler.Reconcile)

			// Configuration
			api.GET("/settings", r.wakerHandler.GetSettings)
			api.PUT("/settings", r.wakerHandler.UpdateSettings)
		}
	}

	// Self metrics
	if r.metricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(r.metricsHandler))
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
