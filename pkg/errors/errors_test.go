package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestRetryExhaustedCarriesLastCause(t *testing.T) {
	last := NewTransientError("resolve_provider_by_code", http.StatusServiceUnavailable, nil)
	err := NewRetryExhaustedError("resolve_provider_by_code", 3, 70*time.Millisecond, last)

	assert.Equal(t, KindRetryExhausted, err.Kind)
	assert.Equal(t, 3, err.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
	assert.True(t, IsKind(err, KindTransient), "last cause should be reachable")
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("assembly: %w", NewResolutionMissingError(models.EntityKindClinic, "baytown"))

	assert.Equal(t, KindResolutionMissing, KindOf(err))
	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "baytown", e.Code)
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestToHTTPError(t *testing.T) {
	err := NewAuthError("resolve_clinic_by_code", http.StatusUnauthorized, "JWT expired")

	httpErr := err.ToHTTPError()
	assert.Equal(t, http.StatusBadGateway, httperror.GetStatusCode(httpErr))
	assert.Contains(t, httpErr.Error(), "JWT expired")

	validation := NewValidationError("system name is required")
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(validation.ToHTTPError()))
}
