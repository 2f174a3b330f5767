package codec_test

import (
	"testing"

	"github.com/smilemakc/dagml/internal/codec"
	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/graph"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ph := core.NewPlaceholder("x")
	doubled := core.Transform1("double", false, func(x int) int { return x * 2 }, core.Input[int](ph))

	g, err := graph.Build([]core.Producer{doubled}, []*core.Placeholder{ph})
	require.NoError(t, err)

	snap, err := codec.Encode(g.TopoOrder(), g.Nodes(), g.Outputs(), g.Placeholders())
	require.NoError(t, err)

	b, err := codec.Marshal(snap)
	require.NoError(t, err)

	decodedSnap, err := codec.Unmarshal(b)
	require.NoError(t, err)

	reg := codec.NewRegistry()
	reg.RegisterTransformer("double", false, func(in []any) any { return in[0].(int) * 2 })

	outputs, placeholders, err := codec.Decode(decodedSnap, reg)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Len(t, placeholders, 1)

	decodedDoubled := outputs[0].(*core.PreparedTransformer)
	require.Equal(t, doubled.Handle(), decodedDoubled.Handle())
	require.Equal(t, 10, decodedDoubled.Apply([]any{5}))
}

func TestDecodeMissingTransformerErrors(t *testing.T) {
	ph := core.NewPlaceholder("x")
	doubled := core.Transform1("double", false, func(x int) int { return x * 2 }, core.Input[int](ph))
	g, err := graph.Build([]core.Producer{doubled}, []*core.Placeholder{ph})
	require.NoError(t, err)

	snap, err := codec.Encode(g.TopoOrder(), g.Nodes(), g.Outputs(), g.Placeholders())
	require.NoError(t, err)

	_, _, err = codec.Decode(snap, codec.NewRegistry())
	require.Error(t, err)
}
