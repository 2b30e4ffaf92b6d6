package api

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AgentShepherd/dataworks/internal/dispatch"
	"github.com/AgentShepherd/dataworks/internal/logger"
)

var httpLog = logger.New("http")

// =============================================================================
// Security Headers Middleware
// =============================================================================

// SecurityHeadersMiddleware adds security headers for JSON API responses
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevent MIME type sniffing
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")

		// Responses may carry sandbox file contents
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

// =============================================================================
// Request Size Limit Middleware
// =============================================================================

// MaxBodySize is the default maximum request body size (1MB)
const MaxBodySize = 1 << 20

// BodySizeLimitMiddleware limits the request body size
func BodySizeLimitMiddleware(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = MaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			Error(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body too large. Maximum size is %d bytes.", maxSize))
			c.Abort()
			return
		}

		// Clients can lie about Content-Length
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// =============================================================================
// Request ID Middleware
// =============================================================================

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

var clientRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestIDMiddleware accepts a well-formed X-Request-ID from the client or
// assigns a UUID, echoes it, and attaches it to the request context so the
// dispatcher and audit trail use the same id.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !clientRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(dispatch.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// =============================================================================
// Logging Middleware
// =============================================================================

// LoggingMiddleware logs each request at debug level. Health probes are
// skipped.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		httpLog.Debug("[%s] %s %s from %s -> %d (%v)", c.GetString(requestIDKey),
			c.Request.Method, c.Request.URL.Path, c.ClientIP(), c.Writer.Status(), time.Since(start))
	}
}
