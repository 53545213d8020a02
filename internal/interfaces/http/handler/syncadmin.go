package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsyncjob "github.com/pulsecdp/backend/internal/application/syncjob"
	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/interfaces/http/middleware"
)

// SyncAdminHandler serves the queue dashboard and destination administration
type SyncAdminHandler struct {
	BaseHandler
	statsService *appsyncjob.StatsService
}

// NewSyncAdminHandler creates a new SyncAdminHandler
func NewSyncAdminHandler(statsService *appsyncjob.StatsService) *SyncAdminHandler {
	return &SyncAdminHandler{statsService: statsService}
}

// QueueStats handles GET /api/v1/stats/queue
func (h *SyncAdminHandler) QueueStats(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	stats, err := h.statsService.QueueStats(c.Request.Context(), workspaceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// PipelineStats handles GET /api/v1/stats/pipeline
func (h *SyncAdminHandler) PipelineStats(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	stats, err := h.statsService.PipelineStats(c.Request.Context(), workspaceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// RecentJobs handles GET /api/v1/stats/jobs. Supports status and
// destination_id query filters plus page/page_size.
func (h *SyncAdminHandler) RecentJobs(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	filter := shared.DefaultFilter()
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if pageSize, err := strconv.Atoi(c.Query("page_size")); err == nil && pageSize > 0 && pageSize <= 100 {
		filter.PageSize = pageSize
	}
	if status := c.Query("status"); status != "" {
		filter.Filters["status"] = status
	}
	if destID := c.Query("destination_id"); destID != "" {
		id, err := uuid.Parse(destID)
		if err != nil {
			h.BadRequest(c, "invalid destination_id")
			return
		}
		filter.Filters["destination_id"] = id
	}

	page, err := h.statsService.RecentJobs(c.Request.Context(), workspaceID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListDestinations handles GET /api/v1/destinations
func (h *SyncAdminHandler) ListDestinations(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	destinations, err := h.statsService.ListDestinations(c.Request.Context(), workspaceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, destinations)
}

// RegisterDestination handles POST /api/v1/destinations
func (h *SyncAdminHandler) RegisterDestination(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	var req appsyncjob.RegisterDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	dest, err := h.statsService.RegisterDestination(c.Request.Context(), workspaceID, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dest)
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetEnabled handles PUT /api/v1/destinations/:id/enabled. Disabling a
// destination stops new claims without interrupting jobs already running.
func (h *SyncAdminHandler) SetEnabled(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	destinationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid destination id")
		return
	}

	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	dest, err := h.statsService.SetDestinationEnabled(c.Request.Context(), workspaceID, destinationID, *req.Enabled)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dest)
}
