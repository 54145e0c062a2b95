// Package http assembles the gin route tree and the HTTP server of the fleet
// service.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/TRAXX-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.  Nil handlers leave their routes unregistered.
type RouterConfig struct {
	// Gin mode: debug, release, or test.
	Mode string

	// Handlers
	FleetHandler  *handlers.FleetHandler
	MapHandler    *handlers.MapHandler
	QueryHandler  *handlers.QueryHandler
	HealthHandler *handlers.HealthHandler

	// WebSocket serves GET /ws.
	WebSocket http.Handler

	// Middleware
	AllowedOrigins []string
	QueryLimiter   middleware.RateLimiter
	HTTPRecorder   middleware.HTTPRecorder
	MaxBodySize    int64

	// Infrastructure
	Logger         logging.Logger
	MetricsPath    string
	MetricsHandler http.Handler
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// --- Global middleware (applied to every request) ---
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Metrics(cfg.HTTPRecorder))
	r.Use(middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))
	if cfg.MaxBodySize > 0 {
		r.Use(limitBody(cfg.MaxBodySize))
	}

	// --- Probes and scrape ---
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}
	if cfg.WebSocket != nil {
		r.GET("/ws", gin.WrapH(cfg.WebSocket))
	}

	// --- API v1 ---
	api := r.Group("/api/v1")
	if cfg.FleetHandler != nil {
		cfg.FleetHandler.RegisterRoutes(api)
	}
	if cfg.MapHandler != nil {
		cfg.MapHandler.RegisterRoutes(api)
	}
	if cfg.QueryHandler != nil {
		var guard []gin.HandlerFunc
		if cfg.QueryLimiter != nil {
			guard = append(guard, middleware.RateLimit(cfg.QueryLimiter, middleware.DefaultRateLimitConfig()))
		}
		cfg.QueryHandler.RegisterRoutes(api, guard...)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody(c, errors.ErrCodeNotFound, "route not found"))
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorBody(c, errors.ErrCodeBadRequest, "method not allowed"))
	})
	return r
}

func errorBody(c *gin.Context, code errors.ErrorCode, msg string) common.APIResponse[any] {
	resp := common.NewErrorResponse(string(code), msg)
	resp.RequestID = middleware.GetRequestID(c)
	return resp
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

//Personal.AI order the ending
