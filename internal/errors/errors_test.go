package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFoundf("playlist %s not found", "pl-1")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrValidation))
	assert.Equal(t, "playlist pl-1 not found", err.Error())
}

func TestError_WrappedStillMatches(t *testing.T) {
	base := ErrPlaybackFault.WithMessage("player reported error 150")
	wrapped := fmt.Errorf("session v1: %w", base)

	assert.True(t, Is(wrapped, ErrPlaybackFault))

	var domainErr *Error
	require.True(t, As(wrapped, &domainErr))
	assert.Equal(t, CodePlaybackFault, domainErr.Code)
}

func TestError_WithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, CodeInternal, "save state")

	assert.Equal(t, "save state: disk full", err.Error())
	assert.Equal(t, cause, Unwrap(err))
}

func TestError_WithDetailsKeepsCode(t *testing.T) {
	err := ErrValidation.WithDetails(map[string]string{"duration": "must be greater than 0"})

	assert.Equal(t, CodeValidation, err.Code)
	assert.NotNil(t, err.Details)
	assert.Nil(t, ErrValidation.Details, "sentinel must not be mutated")
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeAlreadyExists, http.StatusConflict},
		{CodeConflict, http.StatusConflict},
		{CodeValidation, http.StatusBadRequest},
		{CodeResourceAcquisition, http.StatusServiceUnavailable},
		{CodePlaybackFault, http.StatusBadGateway},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeCorruptState, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}
