package errors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kislikjeka/moneyledger/internal/shared/errors"
)

func TestGetAppError_ThroughWrapping(t *testing.T) {
	cause := errors.New("strconv: bad digit")
	appErr := apperrors.Wrap(cause, apperrors.ErrCodeBadRequest, "invalid limit")
	wrapped := fmt.Errorf("list transactions: %w", appErr)

	got := apperrors.GetAppError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, apperrors.ErrCodeBadRequest, got.Code)
	assert.Equal(t, "invalid limit", got.Message)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "BAD_REQUEST: invalid limit: strconv: bad digit", appErr.Error())

	assert.Nil(t, apperrors.GetAppError(cause))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{apperrors.ErrCodeValidation, http.StatusBadRequest},
		{apperrors.ErrCodeBadRequest, http.StatusBadRequest},
		{apperrors.ErrCodeNotFound, http.StatusNotFound},
		{apperrors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrCodeForbidden, http.StatusForbidden},
		{apperrors.ErrCodeConflict, http.StatusConflict},
		{apperrors.ErrCodeLedgerUnbalanced, http.StatusUnprocessableEntity},
		{apperrors.ErrCodeInsufficientBalance, http.StatusUnprocessableEntity},
		{apperrors.ErrCodeRateLimited, http.StatusTooManyRequests},
		{apperrors.ErrCodeUpstream, http.StatusBadGateway},
		{apperrors.ErrCodeNotReady, http.StatusServiceUnavailable},
		{apperrors.ErrCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, apperrors.HTTPStatus(tt.code))
		})
	}
}
