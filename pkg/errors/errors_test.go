package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	plain := New("TEST", "something broke", http.StatusBadRequest)
	assert.Equal(t, "something broke", plain.Error())

	wrapped := Wrap(fmt.Errorf("pq: deadlock detected"), "TEST", "something broke", http.StatusInternalServerError)
	assert.Equal(t, "something broke: pq: deadlock detected", wrapped.Error())
}

func TestConstructors_SentinelMatching(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		sentinel   error
		statusCode int
	}{
		{"not found", NotFound("item"), ErrNotFound, http.StatusNotFound},
		{"bad request", BadRequest("quantity must be positive"), ErrBadRequest, http.StatusBadRequest},
		{"conflict", Conflict("duplicate lot"), ErrConflict, http.StatusConflict},
		{"internal", Internal("boom"), ErrInternal, http.StatusInternalServerError},
		{"validation", Validation(map[string]string{"qty": "required"}), ErrValidation, http.StatusBadRequest},
		{"insufficient stock", InsufficientStock(), ErrInsufficientStock, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
		})
	}
}

func TestInsufficientStock_Message(t *testing.T) {
	err := InsufficientStock()
	assert.Equal(t, "Insufficient stock (FEFO)", err.Message)
	assert.Equal(t, "INSUFFICIENT_STOCK", err.Code)
}

func TestAs_UnwrapsThroughWrapping(t *testing.T) {
	inner := NotFound("location")
	outer := fmt.Errorf("loading move: %w", inner)

	var appErr *AppError
	require.True(t, As(outer, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
	assert.True(t, Is(outer, ErrNotFound))
}

func TestWithDetails(t *testing.T) {
	err := BadRequest("invalid payload").WithDetails(map[string]string{"item_id": "must be a UUID"})
	assert.Equal(t, "must be a UUID", err.Details["item_id"])
}
