// Package condition evaluates boolean predicate expressions over a
// producer's constant parent values, used by ConditionalProducer's
// if-true/if-false collapse during reduction: compile with expr.Env when a
// typed environment is available, fall back to an untyped compile, then
// run against the normalized variable map, with a cache keyed by the
// expression text so a hot predicate is compiled once.
package condition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator compiles and caches condition programs by their source text.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator returns an Evaluator with an empty compile cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate compiles (or reuses a cached compile of) expression against
// vars and returns its boolean result. vars is normalized the same way the
// teacher's normalizeStringValues does: every string value has leading and
// trailing whitespace trimmed before the program runs, so
// `status == "active"` still matches a value that arrived as " active "
// from an upstream transformer.
func (e *Evaluator) Evaluate(expression string, vars map[string]any) (bool, error) {
	program, err := e.compile(expression, vars)
	if err != nil {
		return false, fmt.Errorf("dagml/condition: compiling %q: %w", expression, err)
	}

	out, err := expr.Run(program, normalize(vars))
	if err != nil {
		return false, fmt.Errorf("dagml/condition: evaluating %q: %w", expression, err)
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("dagml/condition: expression %q did not evaluate to a bool, got %T", expression, out)
	}
	return b, nil
}

func (e *Evaluator) compile(expression string, vars map[string]any) (*vm.Program, error) {
	e.mu.RLock()
	cached, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	program, err := expr.Compile(expression, expr.Env(vars), expr.AsBool())
	if err != nil {
		// fall back to an untyped compile for environments that cannot
		// be statically type-checked.
		program, err = expr.Compile(expression, expr.AsBool())
		if err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	e.cache[expression] = program
	e.mu.Unlock()
	return program, nil
}

func normalize(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		return normalize(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
