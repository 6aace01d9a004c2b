package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("Device not found."), http.StatusNotFound},
		{"conflict", Conflict("Label in use."), http.StatusConflict},
		{"validation", Validation("Label must have 8 characters."), http.StatusUnprocessableEntity},
		{"bad request", BadRequest("Invalid sensor."), http.StatusBadRequest},
		{"consistency", Consistency("Previous hold has no end."), http.StatusBadRequest},
		{"internal", Internal("boom", errors.New("db down")), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("create hold: %w", Conflict("busy")), http.StatusConflict},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestMessage_HidesInternalCause(t *testing.T) {
	err := Internal("query holds", errors.New("connection refused"))

	assert.Equal(t, "Internal server error.", Message(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "Label in use.", Message(Conflict("Label in use.")))
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("Hold not found."))

	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(errors.New("x"), KindNotFound))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("write", cause)

	assert.ErrorIs(t, err, cause)
}
