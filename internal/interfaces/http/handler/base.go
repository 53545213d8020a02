package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/interfaces/http/dto"
	"github.com/pulsecdp/backend/internal/interfaces/http/middleware"
)

const (
	// RequestIDHeader carries the request id on the wire
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key set by the request id middleware
	RequestIDKey = "request_id"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDHeader)
}

// getWorkspaceID returns the workspace resolved by the middleware. The
// middleware fails closed, so a missing workspace here is a wiring bug.
func getWorkspaceID(c *gin.Context) (uuid.UUID, error) {
	workspaceID, ok := middleware.GetWorkspaceID(c)
	if !ok {
		return uuid.Nil, errors.New("workspace not resolved")
	}
	return workspaceID, nil
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// HandleError maps domain errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	switch {
	case shared.IsNotFound(err):
		h.NotFound(c, "resource not found")
	case errors.Is(err, shared.ErrStoreUnavailable):
		h.ErrorWithCode(c, dto.ErrCodeStoreUnavailable, "store unavailable, retry the request")
	case errors.Is(err, shared.ErrWorkspaceMismatch):
		h.ErrorWithCode(c, dto.ErrCodeForbidden, "resource belongs to another workspace")
	case errors.Is(err, shared.ErrInvalidState):
		h.ErrorWithCode(c, dto.ErrCodeInvalidState, err.Error())
	default:
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			h.Error(c, http.StatusBadRequest, domainErr.Code, domainErr.Message)
			return
		}
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "internal error")
	}
}
