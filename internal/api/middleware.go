package api

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxLoggedBody caps how much of a request body is logged at debug level.
const maxLoggedBody = 2048

// RequestLogging logs every request with its status and latency. Request
// bodies are logged at debug level and restored for the handler.
func RequestLogging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if ce := logger.Check(zap.DebugLevel, "Incoming request body"); ce != nil && c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			if len(bodyBytes) > maxLoggedBody {
				bodyBytes = bodyBytes[:maxLoggedBody]
			}
			ce.Write(zap.String("path", c.Request.URL.Path), zap.ByteString("body", bodyBytes))
		}

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("Request completed", fields...)
		case c.Request.URL.Path == "/health":
			logger.Debug("Request completed", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}
