package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// GetRequestID extracts the request id from headers or generates a new one.
// The id correlates log lines, failures, and support tickets for one request.
func GetRequestID(c *gin.Context) uuid.UUID {
	if header := c.GetHeader(RequestIDHeader); header != "" {
		if id, err := uuid.Parse(header); err == nil {
			return id
		}
	}
	return uuid.New()
}

// RequestIDFromGinContext returns the request id stored by LoggingMiddleware.
func RequestIDFromGinContext(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.New()
}

// LoggingMiddleware creates a Gin middleware for structured request logging
// with a per-request id using Zerolog.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := GetRequestID(c)
		c.Set(requestIDKey, requestID)

		// Create a sub-logger with the request id attached
		logger := log.With().Str("request_id", requestID.String()).Logger()

		// Inject logger into context
		ctx := logger.WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		// Echo the request id to the client
		c.Header(RequestIDHeader, requestID.String())

		// Process request
		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		var event *zerolog.Event
		if statusCode >= 400 {
			event = logger.Error()
		} else {
			event = logger.Info()
		}

		event.
			Str("method", method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Msg("HTTP request")
	}
}

// GetLoggerFromGinContext - Helper to get zerolog from context
func GetLoggerFromGinContext(c *gin.Context) *zerolog.Logger {
	return zerolog.Ctx(c.Request.Context())
}
