package invoker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/httpclient"
)

// Result is the outcome of a remote function call
type Result struct {
	// Value is the decoded JSON body, or the raw text when the body was not JSON
	Value any
	// Raw is the response body as received
	Raw []byte
	// Parsed is false when the body could not be decoded as JSON
	Parsed    bool
	FromCache bool
	Attempts  int
	Duration  time.Duration
}

func newResult(raw []byte) *Result {
	value, parsed := httpclient.ParseBody(raw)
	return &Result{Value: value, Raw: raw, Parsed: parsed}
}

// Scalar unwraps a one-element array. Any other value is returned as is.
func (r *Result) Scalar() any {
	if list, ok := r.Value.([]any); ok && len(list) == 1 {
		return list[0]
	}
	return r.Value
}

// Empty reports whether the call succeeded without returning anything usable
func (r *Result) Empty() bool {
	return isEmpty(r.Scalar())
}

// ID renders the result as an entity id. found is false for empty results.
// Objects are accepted when they carry an "id" field.
func (r *Result) ID() (id string, found bool) {
	return scalarString(r.Scalar())
}

// Decode decodes the result value into v
func (r *Result) Decode(v any) error {
	if !r.Parsed {
		return fmt.Errorf("response was not JSON: %q", truncate(string(r.Raw), 200))
	}
	data, err := json.Marshal(r.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case map[string]any:
		if id, ok := v["id"]; ok {
			return scalarString(id)
		}
		return "", false
	case []any:
		if len(v) == 1 {
			return scalarString(v[0])
		}
		return "", false
	default:
		return fmt.Sprintf("%v", v), true
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
