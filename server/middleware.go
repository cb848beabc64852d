package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voicenote/log"
)

const requestIDKey = "request_id"

// RequestID tags every request with the caller's X-Request-ID or a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestLogging writes one diagnostics line per request. Health checks and
// metric scrapes are skipped.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			return
		}
		msg := "%s %s %d %dms id=%s"
		args := []any{c.Request.Method, path, c.Writer.Status(), time.Since(start).Milliseconds(), c.GetString(requestIDKey)}
		if errs := c.Errors.String(); errs != "" {
			log.Warnf(msg+" err=%s", append(args, errs)...)
			return
		}
		log.Infof(msg, args...)
	}
}
