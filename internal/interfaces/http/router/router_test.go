package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.Status(http.StatusOK)
}

func TestRouterMountsGroupsUnderVersionPrefix(t *testing.T) {
	engine := gin.New()

	events := NewDomainGroup("events", "/events")
	events.POST("", okHandler)

	stats := NewDomainGroup("stats", "/stats")
	stats.GET("/queue", okHandler)

	NewRouter(engine).
		Register(events).
		Register(stats).
		Setup()

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{"POST", "/api/v1/events", http.StatusOK},
		{"GET", "/api/v1/stats/queue", http.StatusOK},
		{"GET", "/api/v1/missing", http.StatusNotFound},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tt.method, tt.path, nil)
		engine.ServeHTTP(w, req)
		assert.Equal(t, tt.code, w.Code, "%s %s", tt.method, tt.path)
	}
}

func TestRouterCustomAPIVersion(t *testing.T) {
	engine := gin.New()

	ops := NewDomainGroup("ops", "/ops")
	ops.POST("/drain", okHandler)

	NewRouter(engine, WithAPIVersion("v2")).Register(ops).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("POST", "/api/v2/ops/drain", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDomainGroupMiddlewareRuns(t *testing.T) {
	engine := gin.New()

	var called bool
	users := NewDomainGroup("users", "/users")
	users.Use(func(c *gin.Context) {
		called = true
		c.Next()
	})
	users.GET("/:id", okHandler)

	NewRouter(engine).Register(users).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/users/123", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}
