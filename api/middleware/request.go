package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/feichai0017/pdf-voice/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or generates one, and stores
// it in the request context for logger.FromContext.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logger 记录每个请求
func Logger(log logger.Logger) gin.HandlerFunc {
	ctxLog := logger.NewContextLogger(log)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Int("size", c.Writer.Size()),
			logger.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("errors", c.Errors.String()))
		}
		ctxLog.FromContext(c.Request.Context()).Info("HTTP request", fields...)
	}
}

// Recovery turns handler panics into 500 responses.
func Recovery(log logger.Logger) gin.HandlerFunc {
	ctxLog := logger.NewContextLogger(log)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		ctxLog.FromContext(c.Request.Context()).Error("Handler panicked",
			logger.Any("panic", recovered),
			logger.String("path", c.Request.URL.Path),
			logger.Stack(),
		)
		c.AbortWithStatusJSON(500, gin.H{"error": "internal error", "message": "Internal server error"})
	})
}
