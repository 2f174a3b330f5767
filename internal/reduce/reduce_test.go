package reduce_test

import (
	"testing"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/graph"
	"github.com/smilemakc/dagml/internal/reduce"
	"github.com/stretchr/testify/require"
)

func TestFixedPointFoldsConstants(t *testing.T) {
	one := core.NewConstant(1)
	two := core.NewConstant(2)
	sum := core.Transform2("sum", true, func(a, b int) int { return a + b }, core.Input[int](one), core.Input[int](two))

	g, err := graph.Build([]core.Producer{sum}, nil)
	require.NoError(t, err)

	res, err := reduce.FixedPoint(g, reduce.NewRegistry(), reduce.NewBudget(16))
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)

	c, ok := res.Outputs[0].(core.ConstantResult)
	require.True(t, ok, "expected folded output to be constant")
	v, ok := c.ConstantValue()
	require.True(t, ok)
	require.Equal(t, 3, v)
}

func TestFixedPointDeduplicatesValueEqualProducers(t *testing.T) {
	ph := core.NewPlaceholder("x")
	a := core.Transform1("double", false, func(x int) int { return x * 2 }, core.Input[int](ph)).WithValueEquality()
	b := core.Transform1("double", false, func(x int) int { return x * 2 }, core.Input[int](ph)).WithValueEquality()
	sum := core.NewPreparedTransformer("combine", false, func(in []any) any {
		return in[0].(int) + in[1].(int)
	}, a, b)

	g, err := graph.Build([]core.Producer{sum}, []*core.Placeholder{ph})
	require.NoError(t, err)

	reg := reduce.NewRegistry()
	res, err := reduce.FixedPoint(g, reg, reduce.NewBudget(16))
	require.NoError(t, err)

	combined := res.Outputs[0].(*core.PreparedTransformer)
	parents := combined.Parents()
	require.Len(t, parents, 2)
	require.Equal(t, parents[0].Handle(), parents[1].Handle(), "value-equal producers should dedup to the same instance")
}

func TestFixedPointReportsBudgetExceeded(t *testing.T) {
	ph := core.NewPlaceholder("x")
	p := core.Transform1("noop", false, func(x int) int { return x }, core.Input[int](ph))

	g, err := graph.Build([]core.Producer{p}, []*core.Placeholder{ph})
	require.NoError(t, err)

	flip := &flipFlopReducer{}
	reg := reduce.NewRegistry()
	reg.Register(p, flip)

	// Budget exhaustion is logged, not returned: FixedPoint stops after the
	// round that finds the budget spent and returns the best-so-far graph.
	res, err := reduce.FixedPoint(g, reg, reduce.NewBudget(2))
	require.NoError(t, err)
	require.Equal(t, 3, res.Rounds)
}

// flipFlopReducer reports a rewrite (a fresh clone with the same parents)
// every time it's invoked, so no round is ever change-free and reduction
// never converges -- used to exercise the budget-exceeded path.
type flipFlopReducer struct{ toggle bool }

func (f *flipFlopReducer) Reduce(p core.Producer) (core.Producer, bool) {
	f.toggle = !f.toggle
	pt, ok := p.(*core.PreparedTransformer)
	if !ok {
		return nil, false
	}
	return pt.WithParents(pt.Parents()), true
}
