package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsecdp/backend/internal/application/ingest"
	"github.com/pulsecdp/backend/internal/infrastructure/telemetry"
	"github.com/pulsecdp/backend/internal/interfaces/http/dto"
	"github.com/pulsecdp/backend/internal/interfaces/http/middleware"
)

// EventHandler serves the intake endpoint
type EventHandler struct {
	BaseHandler
	ingestService *ingest.IngestService
	metrics       *telemetry.PipelineMetrics
}

// NewEventHandler creates a new EventHandler. metrics may be nil when
// telemetry is disabled.
func NewEventHandler(ingestService *ingest.IngestService, metrics *telemetry.PipelineMetrics) *EventHandler {
	return &EventHandler{
		ingestService: ingestService,
		metrics:       metrics,
	}
}

// Ingest handles POST /api/v1/events. An accepted duplicate returns 200
// with the stored event's id; a new event returns 202 once the pipeline ran.
func (h *EventHandler) Ingest(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	var req ingest.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), workspaceID, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordAdmission(c.Request.Context(), !result.Duplicate, req.Source)
		h.metrics.RecordEnqueued(c.Request.Context(), result.JobsEnqueued)
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, dto.NewSuccessResponse(result))
}
