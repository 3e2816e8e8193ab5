package httpclient

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParseBody decodes a JSON body keeping numbers exact.
// A body that is not valid JSON is returned as its trimmed raw text with ok=false.
func ParseBody(body []byte) (value any, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, true
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var result any
	if err := dec.Decode(&result); err != nil || dec.More() {
		return string(trimmed), false
	}
	return result, true
}

// ErrorMessage extracts the human-readable message from an error response body.
// It prefers the message, error, details and hint fields and falls back to the raw text.
func ErrorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return trimmed
	}

	parts := []string{}
	for _, field := range []string{"message", "error", "details", "hint"} {
		if s, ok := payload[field].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return trimmed
	}
	return strings.Join(parts, ": ")
}

// IsSuccessStatus returns true if the status code indicates success
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsRetryableStatus returns true if the status code indicates a transient server-side failure
func IsRetryableStatus(statusCode int) bool {
	return statusCode >= 500 && statusCode < 600
}

// IsAuthStatus returns true for 401 and 403
func IsAuthStatus(statusCode int) bool {
	return statusCode == 401 || statusCode == 403
}
