package httpclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBody(t *testing.T) {
	value, ok := ParseBody([]byte(` "prov-123" `))
	assert.True(t, ok)
	assert.Equal(t, "prov-123", value)

	value, ok = ParseBody([]byte(`[42]`))
	assert.True(t, ok)
	assert.Equal(t, []any{json.Number("42")}, value)

	value, ok = ParseBody([]byte(`prov-123`))
	assert.False(t, ok)
	assert.Equal(t, "prov-123", value)

	value, ok = ParseBody(nil)
	assert.True(t, ok)
	assert.Nil(t, value)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "permission denied for function resolve_clinic_by_code",
		ErrorMessage([]byte(`{"code":"42501","message":"permission denied for function resolve_clinic_by_code"}`)))
	assert.Equal(t, "invalid input: p_code is required",
		ErrorMessage([]byte(`{"error":"invalid input","details":"p_code is required"}`)))
	assert.Equal(t, "upstream exploded", ErrorMessage([]byte("upstream exploded")))
	assert.Equal(t, `{"code":"x"}`, ErrorMessage([]byte(`{"code":"x"}`)))
	assert.Equal(t, "", ErrorMessage(nil))
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, IsSuccessStatus(204))
	assert.True(t, IsRetryableStatus(503))
	assert.False(t, IsRetryableStatus(429))
	assert.True(t, IsAuthStatus(403))
	assert.False(t, IsAuthStatus(404))
}
