package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/logger"
)

// RequestIDHeader carries the request identifier in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestLogging stamps every request with an identifier, installs a
// request-scoped logger in the context and logs one line per request
// with the final status. It runs outermost so the status it records is
// the one that went out.
func RequestLogging(log interfaces.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)

		reqLog := log.WithFields(interfaces.String("request_id", requestID))
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		fields := []interfaces.Field{
			interfaces.String("method", c.Request.Method),
			interfaces.String("path", c.Request.URL.Path),
			interfaces.Int("status", status),
			interfaces.Duration("duration", time.Since(start)),
			interfaces.String("client_ip", c.ClientIP()),
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLog.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			reqLog.Warn("request completed", fields...)
		default:
			reqLog.Info("request completed", fields...)
		}
	}
}
