package expressions

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestEvaluator_SelectsIDFromRows(t *testing.T) {
	eval := NewEvaluator()

	got, err := eval.Evaluate("[0].id", decode(t, `[{"id": 9007199254740993, "code": "baytown"}]`))
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", got)
}

func TestEvaluator_InvalidExpression(t *testing.T) {
	for _, expression := range []string{"data.", ".id", "[0].id["} {
		t.Run(expression, func(t *testing.T) {
			eval := NewEvaluator()

			assert.Error(t, eval.Compile(expression))
			_, err := eval.Evaluate(expression, map[string]any{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid expression")
		})
	}
}

func TestEvaluator_MissingFieldIsNil(t *testing.T) {
	eval := NewEvaluator()

	got, err := eval.Evaluate("id", decode(t, `{"clinic_id": "c-1"}`))
	require.NoError(t, err)
	assert.Nil(t, got)
}
