package dagflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/objstream"
	"github.com/smilemakc/dagml/pkg/dagflow"
)

func TestBuildPrepareApplyEndToEnd(t *testing.T) {
	x := core.NewPlaceholder("x")
	y := core.NewPlaceholder("y")
	sum := core.Transform2("sum", false, func(a, b int) int { return a + b }, core.Input[int](x), core.Input[int](y))

	pipeline, err := dagflow.New(x, y).WithOutputs(sum).Compile()
	require.NoError(t, err)

	require.NoError(t, pipeline.Prepare(context.Background(), noopReader{}))

	out, err := pipeline.Apply(context.Background(), [][]any{{1, 2}, {3, 4}})
	require.NoError(t, err)
	require.Equal(t, [][]any{{3}, {7}}, out)
}

// noopReader is a stand-in for Prepare calls over a DAG with no
// PreparableTransformer; dagflow never dereferences data in that case.
type noopReader struct{}

func (noopReader) Next() ([]any, bool)                     { return nil, false }
func (noopReader) Rewind() error                            { return nil }
func (noopReader) SizeIfKnown() (int, bool)                 { return 0, true }
func (noopReader) Slice(int, int) (objstream.Reader, error) { return noopReader{}, nil }
func (noopReader) Close() error                             { return nil }

func TestApplyConstantFoldedDAG(t *testing.T) {
	a := core.NewConstant(2)
	b := core.NewConstant(3)
	sum := core.Transform2("sum", true, func(x, y int) int { return x + y }, core.Input[int](a), core.Input[int](b))

	pipeline, err := dagflow.New().WithOutputs(sum).Compile()
	require.NoError(t, err)
	require.GreaterOrEqual(t, pipeline.ReductionRounds(), 1)

	require.NoError(t, pipeline.Prepare(context.Background(), noopReader{}))

	out, err := pipeline.Apply(context.Background(), [][]any{{}})
	require.NoError(t, err)
	require.Equal(t, 5, out[0][0])
}

func TestApplyBeforePrepareFails(t *testing.T) {
	x := core.NewPlaceholder("x")
	pipeline, err := dagflow.New(x).WithOutputs(x).Compile()
	require.NoError(t, err)

	_, err = pipeline.Apply(context.Background(), [][]any{{1}})
	require.Error(t, err)
}
