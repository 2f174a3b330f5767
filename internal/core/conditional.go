package core

import "github.com/smilemakc/dagml/internal/condition"

var sharedConditionEvaluator = condition.NewEvaluator()

// ConditionalProducer selects between two branch producers based on an
// expr-lang boolean expression evaluated over named parent values: instead
// of gating whether an edge fires, it gates which of two producers
// supplies the value.
//
// ConditionalProducer implements the node-local (self) reducer hook: once
// every variable the expression references is constant, the reducer
// collapses the whole node to whichever branch the expression selects --
// the "if-true/if-false" algebraic identity from the reduction spec.
type ConditionalProducer struct {
	base
	expression string
	varNames   []string // positional: varNames[i] names parents[0+2+i]'s value in the expression environment
	thenIndex  int
	elseIndex  int
}

// NewConditionalProducer builds a producer that evaluates expression over
// the named vars (varNames[i] bound to vars[i]'s resolved value) and yields
// then's value if it evaluates true, else's otherwise.
func NewConditionalProducer(expression string, varNames []string, vars []Producer, then, els Producer) *ConditionalProducer {
	parents := make([]Producer, 0, len(vars)+2)
	parents = append(parents, then, els)
	parents = append(parents, vars...)
	return &ConditionalProducer{
		base:       base{handle: NewHandle("conditional"), policy: HandleEquality, parents: parents},
		expression: expression,
		varNames:   varNames,
		thenIndex:  0,
		elseIndex:  1,
	}
}

func (c *ConditionalProducer) ValueHash() uint64 {
	return c.cachedHash(func() uint64 { return fnv1a64(hashAny(c.expression), c.handle) })
}

func (c *ConditionalProducer) ValueEqual(other Producer) bool {
	o, ok := other.(*ConditionalProducer)
	return ok && o.handle == c.handle
}

func (c *ConditionalProducer) WithParents(parents []Producer) Producer {
	if len(parents) != len(c.parents) {
		panic("dagml: conditional producer parent count mismatch")
	}
	clone := *c
	clone.parents = cloneParents(parents)
	clone.hashOnce = false
	return &clone
}

// ReduceSelf implements reduce.SelfReducer: if every named variable parent
// is constant, evaluate the expression once and collapse to the selected
// branch.
func (c *ConditionalProducer) ReduceSelf() (Producer, bool) {
	vars := make(map[string]any, len(c.varNames))
	for i, name := range c.varNames {
		parent, ok := c.parents[2+i].(ConstantResult)
		if !ok {
			return nil, false
		}
		v, ok := parent.ConstantValue()
		if !ok {
			return nil, false
		}
		vars[name] = v
	}

	result, err := sharedConditionEvaluator.Evaluate(c.expression, vars)
	if err != nil {
		return nil, false
	}
	if result {
		return c.parents[c.thenIndex], true
	}
	return c.parents[c.elseIndex], true
}
