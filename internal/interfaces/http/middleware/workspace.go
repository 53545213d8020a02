package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/interfaces/http/dto"
)

const (
	// WorkspaceIDKey is the gin context key holding the resolved workspace id
	WorkspaceIDKey = "workspace_id"
	// WorkspaceHeaderKey is the header every API call must carry
	WorkspaceHeaderKey = "X-Workspace-ID"
)

// WorkspaceConfig holds configuration for the workspace middleware
type WorkspaceConfig struct {
	// SkipPaths are paths served without workspace context
	SkipPaths []string
}

// DefaultWorkspaceConfig returns default configuration
func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready"},
	}
}

// Workspace resolves the calling workspace from the X-Workspace-ID header.
// Requests without a valid workspace are refused; there is no fallback
// workspace.
func Workspace(config WorkspaceConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader(WorkspaceHeaderKey))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "missing "+WorkspaceHeaderKey+" header"))
			return
		}

		workspaceID, err := uuid.Parse(raw)
		if err != nil || workspaceID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "invalid "+WorkspaceHeaderKey+" header"))
			return
		}

		c.Set(WorkspaceIDKey, workspaceID)
		c.Next()
	}
}

// GetWorkspaceID returns the workspace resolved by the middleware
func GetWorkspaceID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(WorkspaceIDKey)
	if !exists {
		return uuid.Nil, false
	}
	workspaceID, ok := value.(uuid.UUID)
	return workspaceID, ok && workspaceID != uuid.Nil
}
