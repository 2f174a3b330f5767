package execengine

import (
	"github.com/smilemakc/dagml/internal/core"
)

// computeGenerations assigns every node in order (a topological order: every
// producer appears after all of its parents) to the earliest generation
// consistent with that order -- generation(root) = 0,
// generation(n) = 1 + max(generation(parent) for parent in n.Parents()).
// Every node within a generation has no dependency on any other node in
// the same generation, so the executor may apply them concurrently.
func computeGenerations(order []core.Handle, nodes map[core.Handle]core.Producer) [][]core.Handle {
	gen := make(map[core.Handle]int, len(order))
	maxGen := 0

	for _, h := range order {
		p := nodes[h]
		g := 0
		for _, parent := range p.Parents() {
			if isMissingInput(parent) {
				continue
			}
			if pg, ok := gen[parent.Handle()]; ok && pg+1 > g {
				g = pg + 1
			}
		}
		gen[h] = g
		if g > maxGen {
			maxGen = g
		}
	}

	generations := make([][]core.Handle, maxGen+1)
	for _, h := range order {
		g := gen[h]
		generations[g] = append(generations[g], h)
	}
	return generations
}

func isMissingInput(p core.Producer) bool {
	return p == core.MissingInput()
}

// PreparedDAG is a DAG whose every node is a Placeholder, Generator,
// Constant or PreparedTransformer -- no PreparableTransformer or View
// remains. Apply and ApplyAll only ever run against one of these.
type PreparedDAG struct {
	outputs      []core.Producer
	placeholders []*core.Placeholder
	nodes        map[core.Handle]core.Producer
	order        []core.Handle
	generations  [][]core.Handle
}

// Outputs returns the prepared DAG's requested outputs, in declaration order.
func (d *PreparedDAG) Outputs() []core.Producer { return d.outputs }

// Placeholders returns the prepared DAG's declared placeholders, in the
// order Apply expects row values to be supplied in.
func (d *PreparedDAG) Placeholders() []*core.Placeholder { return d.placeholders }
