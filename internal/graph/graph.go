// Package graph builds and validates the DAG of producers reachable from a
// set of requested outputs, and extracts deterministic execution order from
// it. Forward/reverse adjacency maps keyed by node identity, Kahn's
// algorithm for topological sort, and DFS cycle detection, keyed by dagml
// producer handles rather than string node IDs.
package graph

import (
	"sort"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/engerr"
)

// Graph is the validated, closed set of producers reachable from a list of
// requested outputs, plus the placeholders that parameterize it.
type Graph struct {
	outputs      []core.Producer
	placeholders []*core.Placeholder

	nodes   map[core.Handle]core.Producer
	forward map[core.Handle][]core.Handle // parent -> children
	order   []core.Handle                 // deterministic, see Build
}

// Build walks backward from outputs through Parents(), validates the
// resulting graph, and returns it. It reports a GraphValidation error if:
//   - a cycle exists among handle-distinct producers;
//   - two distinct producer instances report the same Handle (forbidden:
//     handles must uniquely identify one producer within a graph);
//   - any of the outputs is itself a *core.View (views elsewhere in the
//     graph are allowed).
func Build(outputs []core.Producer, placeholders []*core.Placeholder) (*Graph, error) {
	g := &Graph{
		outputs:      outputs,
		placeholders: placeholders,
		nodes:        make(map[core.Handle]core.Producer),
		forward:      make(map[core.Handle][]core.Handle),
	}

	var visit func(p core.Producer, stack map[core.Handle]bool) error
	visit = func(p core.Producer, stack map[core.Handle]bool) error {
		h := p.Handle()
		if existing, ok := g.nodes[h]; ok {
			if existing != p {
				return engerr.GraphValidation("handle %s is shared by two distinct producer instances", h)
			}
			return nil
		}
		if stack[h] {
			return engerr.GraphValidation("cycle detected at producer %s", h)
		}
		stack[h] = true
		for _, parent := range p.Parents() {
			if parent == nil {
				continue
			}
			if err := visit(parent, stack); err != nil {
				return err
			}
			g.forward[parent.Handle()] = append(g.forward[parent.Handle()], h)
		}
		delete(stack, h)
		g.nodes[h] = p
		if _, isView := p.(*core.View); isView {
			// views are allowed mid-graph (a preparable transformer's
			// consumer may legitimately read through one before the
			// executor splices it away); only output-position views are
			// rejected, checked below.
		}
		return nil
	}

	for _, out := range outputs {
		if out == nil {
			return nil, engerr.GraphValidation("nil output producer")
		}
		if err := visit(out, map[core.Handle]bool{}); err != nil {
			return nil, err
		}
		if _, isView := out.(*core.View); isView {
			return nil, engerr.GraphValidation("output %s is a View; views must be resolved before being used as an output", out.Handle())
		}
	}

	seen := map[core.Handle]bool{}
	for _, ph := range placeholders {
		if seen[ph.Handle()] {
			return nil, engerr.GraphValidation("duplicate placeholder %s", ph.Handle())
		}
		seen[ph.Handle()] = true
	}

	order, err := topoSort(g.nodes, g.forward)
	if err != nil {
		return nil, err
	}
	g.order = order

	for h := range g.nodes {
		if isPlaceholder(g.nodes[h]) && !seen[h] {
			return nil, engerr.GraphValidation("producer graph references placeholder %s not present in the declared placeholder list", h)
		}
	}

	return g, nil
}

func isPlaceholder(p core.Producer) bool {
	_, ok := p.(*core.Placeholder)
	return ok
}

// Nodes returns every producer reachable from the graph's outputs, keyed by
// handle.
func (g *Graph) Nodes() map[core.Handle]core.Producer { return g.nodes }

// Outputs returns the graph's requested outputs, in the order supplied to Build.
func (g *Graph) Outputs() []core.Producer { return g.outputs }

// Placeholders returns the graph's declared placeholders.
func (g *Graph) Placeholders() []*core.Placeholder { return g.placeholders }

// TopoOrder returns a topological order over every node in the graph:
// every producer appears after all of its parents. Producers that become
// ready at the same step are ordered by their handle's string form, so the
// order is deterministic for a given set of handles.
func (g *Graph) TopoOrder() []core.Handle { return g.order }

// Children returns p's direct consumers within this graph.
func (g *Graph) Children(h core.Handle) []core.Handle { return g.forward[h] }

// Subgraph returns, for each target handle, the shortest-path (by parent
// hop count) ancestor chain from the graph's roots (every producer with no
// parents) down to that target, deterministically ordered: BFS from the
// roots taken in TopoOrder, visiting each node's children in the order
// Build recorded them, recording the first (hence shortest) path to reach
// each target.
func (g *Graph) Subgraph(targets []core.Handle) map[core.Handle][]core.Handle {
	want := make(map[core.Handle]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}

	type queueItem struct {
		h    core.Handle
		path []core.Handle
	}

	visited := map[core.Handle]bool{}
	result := make(map[core.Handle][]core.Handle, len(targets))

	var roots []core.Handle
	for _, h := range g.order {
		p := g.nodes[h]
		if len(p.Parents()) == 0 {
			roots = append(roots, h)
		}
	}

	queue := make([]queueItem, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, queueItem{h: r, path: []core.Handle{r}})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if visited[item.h] {
			continue
		}
		visited[item.h] = true
		if want[item.h] {
			result[item.h] = item.path
		}
		for _, child := range g.forward[item.h] {
			if visited[child] {
				continue
			}
			childPath := make([]core.Handle, len(item.path)+1)
			copy(childPath, item.path)
			childPath[len(item.path)] = child
			queue = append(queue, queueItem{h: child, path: childPath})
		}
	}

	return result
}

func topoSort(nodes map[core.Handle]core.Producer, forward map[core.Handle][]core.Handle) ([]core.Handle, error) {
	indegree := make(map[core.Handle]int, len(nodes))
	for h := range nodes {
		indegree[h] = 0
	}
	for _, children := range forward {
		for _, c := range children {
			indegree[c]++
		}
	}

	// deterministic seed order: map iteration is not stable, so we sort by
	// the producer's handle string; ties across distinct handles cannot occur.
	var zero []core.Handle
	for h, d := range indegree {
		if d == 0 {
			zero = append(zero, h)
		}
	}
	sortHandles(zero)

	var order []core.Handle
	for len(zero) > 0 {
		h := zero[0]
		zero = zero[1:]
		order = append(order, h)
		var next []core.Handle
		for _, c := range forward[h] {
			indegree[c]--
			if indegree[c] == 0 {
				next = append(next, c)
			}
		}
		sortHandles(next)
		zero = append(zero, next...)
	}

	if len(order) != len(nodes) {
		return nil, engerr.GraphValidation("cycle detected during topological sort")
	}
	return order, nil
}

func sortHandles(hs []core.Handle) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].String() < hs[j].String() })
}
