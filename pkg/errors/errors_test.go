package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name    string
		err     *AppError
		status  int
		message string
	}{
		{"not found", NotFound("page", cause), http.StatusNotFound, "page not found: boom"},
		{"bad request", BadRequest("invalid json", nil), http.StatusBadRequest, "invalid json"},
		{"internal", Internal(cause), http.StatusInternalServerError, "internal server error: boom"},
		{"unavailable", Unavailable("session store", cause), http.StatusServiceUnavailable, "session store unavailable: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode())
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}

	assert.ErrorIs(t, Internal(cause), cause)
}
