package handlers

import (
	"github.com/feichai0017/pdf-voice/internal/service/conversion"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

type Handlers struct {
	Conversion *ConversionHandler
	Health     *HealthHandler
}

func NewHandlers(
	conversionService conversion.ConversionProcessor,
	pinger Pinger,
	logger logger.Logger,
	maxUploadSize int64,
) *Handlers {
	return &Handlers{
		Conversion: NewConversionHandler(conversionService, logger, maxUploadSize),
		Health:     NewHealthHandler(conversionService, pinger),
	}
}
