package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/satkit/logger"
)

// RequestLogger logs every request with method, path, status and duration.
// GET /health is skipped.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = logger.OrGlobal(log)
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":             c.Request.Method,
			"path":               c.Request.URL.Path,
			logger.FieldStatus:   status,
			logger.FieldDuration: duration.Milliseconds(),
			"client":             c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields[logger.FieldError] = c.Errors.String()
		}
		if duration > 500*time.Millisecond {
			fields["slow"] = true
		}
		logByStatus(log.WithContext(c.Request.Context()), fields, status)
	}
}

func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("request completed", fields)
	case status >= 400:
		log.Warn("request completed", fields)
	default:
		log.Debug("request completed", fields)
	}
}
