package prepbuiltin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/execengine"
	"github.com/smilemakc/dagml/internal/graph"
	"github.com/smilemakc/dagml/internal/monitor"
	"github.com/smilemakc/dagml/internal/objstream"
	"github.com/smilemakc/dagml/internal/prepbuiltin"
)

func TestStandardScalerFitsMeanAndVariance(t *testing.T) {
	amount := core.NewPlaceholder("amount")
	scaled := prepbuiltin.NewStandardScaler("scaled", core.Input[float64](amount))

	g, err := graph.Build([]core.Producer{scaled}, []*core.Placeholder{amount})
	require.NoError(t, err)

	writer := objstream.NewWriter(0)
	for _, v := range []float64{2, 4, 6, 8} {
		require.NoError(t, writer.Write([]any{v}))
	}
	reader, err := writer.Reader()
	require.NoError(t, err)

	e := execengine.NewEngine(execengine.DefaultOptions(), monitor.NewObserverManager())
	dag, err := e.Prepare(context.Background(), g, reader)
	require.NoError(t, err)

	out, err := e.Apply(context.Background(), dag, [][]any{{5.0}})
	require.NoError(t, err)
	require.InDelta(t, 0.0, out[0][0].(float64), 1e-9)
}

func TestTopKVocabularyRanksByFrequencyAndFlagsOOV(t *testing.T) {
	category := core.NewPlaceholder("category")
	vocab := prepbuiltin.NewTopKVocabulary("category_index", 2, core.Input[string](category))

	g, err := graph.Build([]core.Producer{vocab}, []*core.Placeholder{category})
	require.NoError(t, err)

	writer := objstream.NewWriter(0)
	for _, v := range []string{"gold", "gold", "gold", "silver", "silver", "bronze"} {
		require.NoError(t, writer.Write([]any{v}))
	}
	reader, err := writer.Reader()
	require.NoError(t, err)

	e := execengine.NewEngine(execengine.DefaultOptions(), monitor.NewObserverManager())
	dag, err := e.Prepare(context.Background(), g, reader)
	require.NoError(t, err)

	out, err := e.Apply(context.Background(), dag, [][]any{{"gold"}, {"silver"}, {"bronze"}})
	require.NoError(t, err)
	require.Equal(t, 0, out[0][0])
	require.Equal(t, 1, out[1][0])
	require.Equal(t, -1, out[2][0])
}
