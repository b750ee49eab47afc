package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-voice/internal/service/conversion"
)

// Pinger checks a dependency such as redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	service conversion.ConversionProcessor
	pinger  Pinger
}

func NewHealthHandler(service conversion.ConversionProcessor, pinger Pinger) *HealthHandler {
	return &HealthHandler{service: service, pinger: pinger}
}

// Health 健康检查. The queue is optional, so a failed ping degrades
// rather than fails the check.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status":  "ok",
		"backend": h.service.Backend(),
	}

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["queue"] = err.Error()
		} else {
			resp["queue"] = "ok"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Languages 返回语言表
func (h *HealthHandler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"languages": h.service.Languages(),
		"default":   h.service.DefaultLanguage(),
	})
}
