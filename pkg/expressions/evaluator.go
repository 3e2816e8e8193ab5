package expressions

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmespath/go-jmespath"
)

// Evaluator evaluates JMESPath expressions against decoded JSON, caching compiled expressions
type Evaluator struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

// NewEvaluator creates a new expression evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

// Compile validates an expression and caches it for later evaluation
func (e *Evaluator) Compile(expression string) error {
	_, err := e.getOrCompile(expression)
	return err
}

// Evaluate evaluates a JMESPath expression against data
func (e *Evaluator) Evaluate(expression string, data any) (any, error) {
	compiled, err := e.getOrCompile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	result, err := compiled.Search(normalize(data))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	return result, nil
}

func (e *Evaluator) getOrCompile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	compiled, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()

	return compiled, nil
}

// normalize converts json.Number values, which JMESPath cannot compare, into strings
// so that numeric ids survive selection without losing precision.
func normalize(data any) any {
	switch v := data.(type) {
	case json.Number:
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = normalize(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = normalize(value)
		}
		return out
	default:
		return data
	}
}
