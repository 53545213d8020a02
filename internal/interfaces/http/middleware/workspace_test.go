package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newWorkspaceRouter() *gin.Engine {
	r := gin.New()
	r.Use(Workspace(DefaultWorkspaceConfig()))
	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/resource", func(c *gin.Context) {
		id, ok := GetWorkspaceID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"workspace_id": id.String()})
	})
	return r
}

func TestWorkspaceMiddlewareResolvesHeader(t *testing.T) {
	router := newWorkspaceRouter()
	workspaceID := uuid.New()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/resource", nil)
	req.Header.Set(WorkspaceHeaderKey, workspaceID.String())
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), workspaceID.String())
}

func TestWorkspaceMiddlewareRejectsMissingHeader(t *testing.T) {
	router := newWorkspaceRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/resource", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWorkspaceMiddlewareRejectsMalformedHeader(t *testing.T) {
	router := newWorkspaceRouter()

	tests := []struct {
		name  string
		value string
	}{
		{"not a uuid", "not-a-uuid"},
		{"nil uuid", uuid.Nil.String()},
		{"whitespace only", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/resource", nil)
			req.Header.Set(WorkspaceHeaderKey, tt.value)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestWorkspaceMiddlewareSkipsHealthPath(t *testing.T) {
	router := newWorkspaceRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetWorkspaceIDWithoutMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	_, ok := GetWorkspaceID(c)
	assert.False(t, ok)
}
