package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/koios/countdown-renderer/internal/render"
	"github.com/koios/countdown-renderer/pkg/models"
	"go.uber.org/zap"
)

// EventHandler processes render requests arriving from the queue transports.
type EventHandler struct {
	processor *render.Processor
	logger    *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(processor *render.Processor, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		processor: processor,
		logger:    logger,
	}
}

// Handle processes a render request event. On failure it returns both the
// error and a result carrying the error message, ready to publish.
func (h *EventHandler) Handle(ctx context.Context, request *models.RenderRequest) (*models.RenderResult, error) {
	h.logger.Info("Processing render request",
		zap.String("id", request.ID),
		zap.String("type", request.Type))

	// Validate request
	if request.Type != models.RenderRequestType {
		h.logger.Error("Invalid request type", zap.String("type", request.Type))
		err := fmt.Errorf("invalid request type: %s", request.Type)
		return errorResult(request, err), err
	}

	if request.ID == "" {
		h.logger.Error("Missing request id")
		err := fmt.Errorf("id is required")
		return errorResult(request, err), err
	}

	if errs := ValidateParams(request.Params); len(errs) > 0 {
		h.logger.Warn("Render request failed validation",
			zap.String("id", request.ID),
			zap.Any("errors", errs))
		err := fmt.Errorf("invalid %s: %s", errs[0].Field, errs[0].Message)
		return errorResult(request, err), err
	}

	result, err := h.processor.Render(ctx, request)
	if err != nil {
		h.logger.Error("Render request failed",
			zap.Error(err),
			zap.String("id", request.ID))
		return errorResult(request, err), err
	}

	h.logger.Info("Render request completed successfully",
		zap.String("id", request.ID),
		zap.String("name", result.Name),
		zap.Int("frames", result.Frames))

	return result, nil
}

// GetProcessor returns the render processor for HTTP handlers
func (h *EventHandler) GetProcessor() *render.Processor {
	return h.processor
}

func errorResult(request *models.RenderRequest, err error) *models.RenderResult {
	return &models.RenderResult{
		Type:        models.RenderResultType,
		ID:          request.ID,
		Error:       err.Error(),
		ProcessedAt: time.Now(),
	}
}
