package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// LoggingConfig holds configuration for the request logging middleware.
type LoggingConfig struct {
	// SkipPaths are not logged (probes, metrics scrapes).
	SkipPaths []string

	// SlowThreshold promotes successful requests slower than this to Warn.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig skips the probe and scrape paths.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// RequestLogging logs one line per request after it completes.  5xx
// responses log at Error, 4xx and slow requests at Warn, the rest at Info.
func RequestLogging(logger logging.Logger, config LoggingConfig) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	skipSet := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skipSet[p] = true
	}

	return func(c *gin.Context) {
		if skipSet[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		fields := []logging.Field{
			logging.String("request_id", GetRequestID(c)),
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", status),
			logging.Duration("duration", duration),
			logging.Int("bytes_written", c.Writer.Size()),
			logging.String("remote_addr", c.ClientIP()),
			logging.String("user_agent", c.Request.UserAgent()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http request completed with server error", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("http request completed with client error", fields...)
		case config.SlowThreshold > 0 && duration > config.SlowThreshold:
			fields = append(fields, logging.Duration("slow_threshold", config.SlowThreshold))
			logger.Warn("slow http request", fields...)
		default:
			logger.Info("http request completed", fields...)
		}
	}
}

// HTTPRecorder receives one observation per request.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	RecordActiveRequest(delta int)
}

// Metrics records request count and latency by route template, so path
// parameters do not explode label cardinality.  Unmatched routes share one
// label.
func Metrics(rec HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rec == nil {
			c.Next()
			return
		}
		start := time.Now()
		rec.RecordActiveRequest(1)
		defer rec.RecordActiveRequest(-1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Recovery turns a handler panic into a COMMON_001 envelope and logs the
// stack.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					logging.String("request_id", GetRequestID(c)),
					logging.String("method", c.Request.Method),
					logging.String("path", c.Request.URL.Path),
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())))
				resp := common.NewErrorResponse(string(errors.ErrCodeInternal), errors.DefaultMessageForCode(errors.ErrCodeInternal))
				resp.RequestID = GetRequestID(c)
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()
		c.Next()
	}
}

//Personal.AI order the ending
