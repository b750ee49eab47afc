package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feichai0017/pdf-voice/api/handlers"
	"github.com/feichai0017/pdf-voice/api/middleware"
	"github.com/feichai0017/pdf-voice/internal/metrics"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, allowedOrigins []string, log logger.Logger) {
	// 全局中间件
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		metrics.Instrument(),
		middleware.CORS(allowedOrigins),
	)

	// 健康检查和监控
	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 版本组
	v1 := r.Group("/api/v1")
	v1.GET("/languages", h.Health.Languages)

	docs := v1.Group("/documents")
	{
		docs.POST("/pages", h.Conversion.CountPages)
	}

	// 转换路由组
	conversions := v1.Group("/conversions")
	{
		conversions.POST("", h.Conversion.Convert)
		conversions.POST("/async", h.Conversion.Submit)
		conversions.POST("/batch", h.Conversion.SubmitBatch)
		conversions.GET("/:taskId/status", h.Conversion.GetStatus)
		conversions.GET("/:taskId/result", h.Conversion.GetResult)
		conversions.DELETE("/:taskId", h.Conversion.CancelTask)
	}
}
