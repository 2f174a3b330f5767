package graph_test

import (
	"testing"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/graph"
	"github.com/stretchr/testify/require"
)

func TestBuildTopoOrderRespectsParents(t *testing.T) {
	ph := core.NewPlaceholder("x")
	doubled := core.Transform1("double", true, func(x int) int { return x * 2 }, core.Input[int](ph))
	plusOne := core.Transform1("plus_one", true, func(x int) int { return x + 1 }, core.Input[int](doubled))

	g, err := graph.Build([]core.Producer{plusOne}, []*core.Placeholder{ph})
	require.NoError(t, err)

	pos := map[core.Handle]int{}
	for i, h := range g.TopoOrder() {
		pos[h] = i
	}
	require.Less(t, pos[ph.Handle()], pos[doubled.Handle()])
	require.Less(t, pos[doubled.Handle()], pos[plusOne.Handle()])
}

// cyclicProducer is a hand-rolled Producer that violates the immutable
// construction-order invariant every built-in producer kind upholds (a
// node's parents always exist before the node itself does, so a genuine
// cycle is otherwise unconstructible). Build must still defend against it.
type cyclicProducer struct {
	handle  core.Handle
	parents []core.Producer
}

func (c *cyclicProducer) Handle() core.Handle                { return c.handle }
func (c *cyclicProducer) Parents() []core.Producer            { return c.parents }
func (c *cyclicProducer) EqualityPolicy() core.EqualityPolicy { return core.HandleEquality }
func (c *cyclicProducer) ValueHash() uint64                  { return 0 }
func (c *cyclicProducer) ValueEqual(other core.Producer) bool { return other == core.Producer(c) }
func (c *cyclicProducer) WithParents(p []core.Producer) core.Producer {
	return &cyclicProducer{handle: c.handle, parents: p}
}

func TestBuildRejectsCycle(t *testing.T) {
	a := &cyclicProducer{handle: core.NewHandle("cyclic-a")}
	b := &cyclicProducer{handle: core.NewHandle("cyclic-b")}
	a.parents = []core.Producer{b}
	b.parents = []core.Producer{a}

	_, err := graph.Build([]core.Producer{a}, nil)
	require.Error(t, err)
}

func TestBuildRejectsDuplicatePlaceholder(t *testing.T) {
	ph := core.NewPlaceholder("x")
	out := core.Transform1("id", false, func(x int) int { return x }, core.Input[int](ph))

	_, err := graph.Build([]core.Producer{out}, []*core.Placeholder{ph, ph})
	require.Error(t, err)
}

func TestBuildRejectsViewAsOutput(t *testing.T) {
	ph := core.NewPlaceholder("x")
	prep := core.NewPreparableTransformer("learned", func() core.Preparer { return nil }, ph)
	view := core.NewView(prep, core.ForNewData)

	_, err := graph.Build([]core.Producer{view}, []*core.Placeholder{ph})
	require.Error(t, err)
}

func TestSubgraphFindsShortestPath(t *testing.T) {
	ph := core.NewPlaceholder("x")
	step1 := core.Transform1("step1", false, func(x int) int { return x }, core.Input[int](ph))
	step2 := core.Transform1("step2", false, func(x int) int { return x }, core.Input[int](step1))

	g, err := graph.Build([]core.Producer{step2}, []*core.Placeholder{ph})
	require.NoError(t, err)

	sub := g.Subgraph([]core.Handle{step2.Handle()})
	path := sub[step2.Handle()]
	require.Equal(t, []core.Handle{ph.Handle(), step1.Handle(), step2.Handle()}, path)
}
