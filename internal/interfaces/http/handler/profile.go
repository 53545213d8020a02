package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appidentity "github.com/pulsecdp/backend/internal/application/identity"
)

// ProfileHandler serves unified profile reads and deletion
type ProfileHandler struct {
	BaseHandler
	profileService *appidentity.ProfileService
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profileService *appidentity.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// Get handles GET /api/v1/users/:id. Requests against merged-away users
// follow the forward pointer to the canonical profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid user id")
		return
	}

	profile, err := h.profileService.GetProfile(c.Request.Context(), workspaceID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, profile)
}

// Delete handles DELETE /api/v1/users/:id. Events are kept anonymized;
// identities, memberships and the profile row are removed.
func (h *ProfileHandler) Delete(c *gin.Context) {
	workspaceID, err := getWorkspaceID(c)
	if err != nil {
		h.Unauthorized(c, "workspace not resolved")
		return
	}

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid user id")
		return
	}

	report, err := h.profileService.DeleteProfile(c.Request.Context(), workspaceID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}
