package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsecdp/backend/internal/application/scoring"
	appsyncjob "github.com/pulsecdp/backend/internal/application/syncjob"
)

// drainBatchLimit caps how many jobs a single drain request processes so the
// request cannot run unbounded against a busy queue.
const drainBatchLimit = 200

// OpsHandler exposes operational triggers: full recompute and queue drain
type OpsHandler struct {
	BaseHandler
	scoreService    *scoring.ScoreService
	deliveryService *appsyncjob.DeliveryService
}

// NewOpsHandler creates a new OpsHandler
func NewOpsHandler(scoreService *scoring.ScoreService, deliveryService *appsyncjob.DeliveryService) *OpsHandler {
	return &OpsHandler{
		scoreService:    scoreService,
		deliveryService: deliveryService,
	}
}

// Recompute handles POST /api/v1/ops/recompute. Recomputes traits for every
// active user in the workspace. Safe to run while the decay sweep is
// active; both paths converge on the same persisted traits.
func (h *OpsHandler) Recompute(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	recomputed, err := h.scoreService.RecomputeWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"recomputed": recomputed})
}

// Drain handles POST /api/v1/ops/drain. Processes claimable jobs inline
// until the queue is empty or the batch limit is hit. Concurrent worker
// pools are safe; claiming is serialized by row locks.
func (h *OpsHandler) Drain(c *gin.Context) {
	if _, err := getWorkspaceID(c); err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	processed := 0
	for processed < drainBatchLimit {
		ok, err := h.deliveryService.ProcessNext(c.Request.Context(), "drain", nil)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		if !ok {
			break
		}
		processed++
	}

	h.Success(c, gin.H{"processed": processed, "drained": processed < drainBatchLimit})
}
