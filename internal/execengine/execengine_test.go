package execengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/execengine"
	"github.com/smilemakc/dagml/internal/graph"
	"github.com/smilemakc/dagml/internal/monitor"
	"github.com/smilemakc/dagml/internal/objstream"
)

func TestPrepareAndApplyOverPreparedOnlyGraph(t *testing.T) {
	x := core.NewPlaceholder("x")
	doubled := core.Transform1("double", false, func(a int) int { return a * 2 }, core.Input[int](x))

	g, err := graph.Build([]core.Producer{doubled}, []*core.Placeholder{x})
	require.NoError(t, err)

	e := execengine.NewEngine(execengine.DefaultOptions(), monitor.NewObserverManager())

	dag, err := e.Prepare(context.Background(), g, emptyReader{})
	require.NoError(t, err)

	out, err := e.Apply(context.Background(), dag, [][]any{{1}, {2}, {3}})
	require.NoError(t, err)
	require.Equal(t, [][]any{{2}, {4}, {6}}, out)
}

type meanPreparer struct {
	sum, n int
}

func (p *meanPreparer) Process(values []any) error {
	p.sum += values[0].(int)
	p.n++
	return nil
}
func (p *meanPreparer) Finish() error { return nil }
func (p *meanPreparer) ResultTransformer() (*core.PreparedTransformer, error) {
	mean := 0
	if p.n > 0 {
		mean = p.sum / p.n
	}
	return core.NewPreparedTransformer("mean", false, func(in []any) any {
		return in[0].(int) - mean
	}), nil
}

func TestPrepareDrivesPreparableTransformer(t *testing.T) {
	x := core.NewPlaceholder("x")
	centered := core.NewPreparableTransformer("center", func() core.Preparer { return &meanPreparer{} }, x)

	g, err := graph.Build([]core.Producer{centered}, []*core.Placeholder{x})
	require.NoError(t, err)

	e := execengine.NewEngine(execengine.DefaultOptions(), monitor.NewObserverManager())

	w := objstream.NewWriter(-1)
	require.NoError(t, w.Write([]any{2}))
	require.NoError(t, w.Write([]any{4}))
	require.NoError(t, w.Write([]any{6}))
	data, err := w.Reader()
	require.NoError(t, err)
	defer data.Close()

	dag, err := e.Prepare(context.Background(), g, data)
	require.NoError(t, err)

	out, err := e.Apply(context.Background(), dag, [][]any{{2}, {4}, {6}})
	require.NoError(t, err)
	require.Equal(t, [][]any{{-2}, {0}, {2}}, out)
}

func TestApplyAllChunksAndPreservesOrder(t *testing.T) {
	x := core.NewPlaceholder("x")
	inc := core.Transform1("inc", false, func(a int) int { return a + 1 }, core.Input[int](x))

	g, err := graph.Build([]core.Producer{inc}, []*core.Placeholder{x})
	require.NoError(t, err)

	e := execengine.NewEngine(execengine.DefaultOptions(), monitor.NewObserverManager())
	dag, err := e.Prepare(context.Background(), g, emptyReader{})
	require.NoError(t, err)

	w := objstream.NewWriter(-1)
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Write([]any{i}))
	}
	reader, err := w.Reader()
	require.NoError(t, err)
	defer reader.Close()

	out, err := e.ApplyAll(context.Background(), dag, reader, 3)
	require.NoError(t, err)
	require.Len(t, out, 10)
	for i, row := range out {
		require.Equal(t, i+1, row[0])
	}
}

func TestApplyRespectsCancellation(t *testing.T) {
	x := core.NewPlaceholder("x")
	g, err := graph.Build([]core.Producer{x}, []*core.Placeholder{x})
	require.NoError(t, err)

	e := execengine.NewEngine(execengine.DefaultOptions(), monitor.NewObserverManager())
	dag, err := e.Prepare(context.Background(), g, emptyReader{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Apply(ctx, dag, [][]any{{1}})
	require.Error(t, err)
}

type emptyReader struct{}

func (emptyReader) Next() ([]any, bool)            { return nil, false }
func (emptyReader) Rewind() error                  { return nil }
func (emptyReader) SizeIfKnown() (int, bool)       { return 0, true }
func (emptyReader) Slice(int, int) (objstream.Reader, error) { return emptyReader{}, nil }
func (emptyReader) Close() error                   { return nil }
