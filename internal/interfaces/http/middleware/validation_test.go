package middleware

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	require.NotNil(t, v)
}

func TestDestinationTypeValidation(t *testing.T) {
	SetupValidator()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	// gin's validator engine runs on the binding tag, like the production
	// request structs
	type payload struct {
		Type string `json:"type" binding:"destinationtype"`
	}

	assert.NoError(t, v.Struct(payload{Type: "klaviyo"}))
	assert.NoError(t, v.Struct(payload{Type: "webhook"}))
	assert.Error(t, v.Struct(payload{Type: "salesforce"}))
}

func TestFormatValidationErrors(t *testing.T) {
	SetupValidator()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	type payload struct {
		Name   string `json:"name" binding:"required"`
		Source string `json:"source" binding:"required"`
	}

	err := v.Struct(payload{})
	require.Error(t, err)

	resp := FormatValidationErrors(err, "req-1")
	assert.False(t, resp.Success)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "name", resp.Error.Details[0].Field)
	assert.Equal(t, "This field is required", resp.Error.Details[0].Message)
}
