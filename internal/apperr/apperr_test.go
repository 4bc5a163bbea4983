package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   Code
	}{
		{"validation", Validation("bad budget"), http.StatusBadRequest, CodeValidation},
		{"forbidden", Forbidden("not yours"), http.StatusForbidden, CodeForbidden},
		{"conflict", ConflictState("already delivered", "delivered"), http.StatusConflict, CodeConflict},
		{"not found", NotFound("order", "abc"), http.StatusNotFound, CodeNotFound},
		{"wrapped conflict", fmt.Errorf("respond: %w", Conflict("terminal")), http.StatusConflict, CodeConflict},
		{"unauthenticated", Unauthenticated("missing token"), http.StatusUnauthorized, CodeUnauthorized},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "order with id 'o-1' not found", NotFound("order", "o-1").Error())
	assert.Equal(t, "cannot complete order (current status: in_progress)",
		ConflictState("cannot complete order", "in_progress").Error())

	v := InvalidField("rating", "must be between 1 and 5")
	assert.Equal(t, "rating: must be between 1 and 5", v.Error())
	assert.Equal(t, "must be between 1 and 5", v.Fields["rating"])
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", Forbidden("nope")))
	assert.True(t, IsForbidden(err))
	assert.False(t, IsConflict(err))
	assert.False(t, IsValidation(err))
	assert.False(t, IsNotFound(err))
}
