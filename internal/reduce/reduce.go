// Package reduce implements the fixed-point reducer: a worklist algorithm
// that rewrites a DAG of producers to a value-equal but smaller/cheaper DAG
// by folding constants, applying node-local and class-indexed algebraic
// identities, and deduplicating value-equal producers, until no further
// rewrite applies (confluence) or a round budget is exhausted.
//
// The worklist runs repeated passes over the node set until no more nodes
// become ready to rewrite, bounded by a simple round-counting Budget.
package reduce

import (
	"reflect"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/graph"
)

// SelfReducer is implemented by a producer class that knows how to reduce
// its own instances (a "node-local reducer" in spec terms), e.g. an
// identity transformer collapsing itself away.
type SelfReducer interface {
	core.Producer
	ReduceSelf() (core.Producer, bool)
}

// ClassReducer is an advisory rewrite rule contributed externally via a
// Registry rather than implemented by the producer class itself -- used
// for algebraic identities that span multiple producer classes (e.g.
// folding a constant-predicate ConditionalProducer feeding a transformer).
type ClassReducer interface {
	// Reduce inspects p (whose own Parents are already fully reduced) and
	// returns a replacement and true if it rewrote it, or (nil, false) if
	// the rule does not apply.
	Reduce(p core.Producer) (core.Producer, bool)
}

// Registry holds class-indexed reducers keyed by the concrete producer
// type they apply to. Modeled on node_executors.go's
// map[domain.NodeType]NodeExecutor registry, generalized to Go's
// reflect.Type as the class key since dagml producer classes are Go types
// rather than a closed enum.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type][]ClassReducer
}

// NewRegistry returns an empty class-reducer registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[reflect.Type][]ClassReducer)}
}

// Register contributes cr as a reducer for every producer whose concrete
// type matches sample's.
func (r *Registry) Register(sample core.Producer, cr ClassReducer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := reflect.TypeOf(sample)
	r.byType[t] = append(r.byType[t], cr)
}

func (r *Registry) lookup(p core.Producer) []ClassReducer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[reflect.TypeOf(p)]
}

// Budget caps the number of worklist rounds the reducer may run before
// giving up, preventing two reducers that rewrite a producer back and
// forth from looping forever.
type Budget struct {
	max  int
	used int
}

// NewBudget returns a budget allowing up to max rounds.
func NewBudget(max int) *Budget { return &Budget{max: max} }

// CanUse reports whether a round remains in the budget.
func (b *Budget) CanUse() bool { return b.used < b.max }

// Use consumes one round, returning false if the budget was already spent.
func (b *Budget) Use() bool {
	if !b.CanUse() {
		return false
	}
	b.used++
	return true
}

// Remaining returns the number of rounds left.
func (b *Budget) Remaining() int { return b.max - b.used }

// Reset zeroes the budget's usage counter.
func (b *Budget) Reset() { b.used = 0 }

// Result is the rewritten DAG returned once reduction reaches confluence.
type Result struct {
	Outputs      []core.Producer
	Placeholders []*core.Placeholder
	Rounds       int
}

// dedupKey groups value-equal candidates under the same ValueHash bucket.
type dedupKey = uint64

// FixedPoint repeatedly rewrites g's producers -- self-reduction, then
// every registered class reducer, then constant folding, then
// value-equality deduplication -- in topological order, one full pass per round, until a
// pass makes no change (confluence). If the budget is exhausted before
// confluence -- most likely two reducers rewriting a producer back and
// forth -- FixedPoint logs it and returns the best-so-far graph from the
// last completed round rather than failing the whole build.
func FixedPoint(g *graph.Graph, registry *Registry, budget *Budget) (*Result, error) {
	current := make(map[core.Handle]core.Producer, len(g.Nodes()))
	for h, p := range g.Nodes() {
		current[h] = p
	}

	rounds := 0
	for {
		memo := make(map[dedupKey][]core.Producer)
		changed := false

		for _, h := range g.TopoOrder() {
			p := current[h]

			if newParents, parentsChanged := resolveParents(p, current); parentsChanged {
				p = p.WithParents(newParents)
				changed = true
			}

			if sr, ok := p.(SelfReducer); ok {
				if np, did := sr.ReduceSelf(); did {
					p = np
					changed = true
				}
			}

			for _, cr := range registry.lookup(p) {
				if np, did := cr.Reduce(p); did {
					p = np
					changed = true
				}
			}

			if pt, ok := p.(*core.PreparedTransformer); ok && pt.AlwaysConstant() {
				if vals, ok := constantParentValues(pt.Parents()); ok {
					p = core.NewConstant(pt.Apply(vals))
					changed = true
				}
			}

			if p.EqualityPolicy() == core.ValueEquality {
				key := p.ValueHash()
				var matched core.Producer
				for _, candidate := range memo[key] {
					if candidate.ValueEqual(p) {
						matched = candidate
						break
					}
				}
				if matched != nil {
					if matched != p {
						changed = true
					}
					p = matched
				} else {
					memo[key] = append(memo[key], p)
				}
			}

			current[h] = p
		}

		rounds++
		if !changed {
			break
		}
		if !budget.Use() {
			log.Warn().Int("rounds", rounds).Msg("reducer budget exceeded, proceeding with best-so-far graph")
			break
		}
	}

	outputs := make([]core.Producer, len(g.Outputs()))
	for i, out := range g.Outputs() {
		outputs[i] = current[out.Handle()]
	}

	return &Result{Outputs: outputs, Placeholders: g.Placeholders(), Rounds: rounds}, nil
}

func resolveParents(p core.Producer, current map[core.Handle]core.Producer) ([]core.Producer, bool) {
	parents := p.Parents()
	if len(parents) == 0 {
		return nil, false
	}
	out := make([]core.Producer, len(parents))
	changed := false
	for i, parent := range parents {
		replacement := current[parent.Handle()]
		if replacement == nil {
			replacement = parent
		}
		out[i] = replacement
		if replacement != parent {
			changed = true
		}
	}
	return out, changed
}

func constantParentValues(parents []core.Producer) ([]any, bool) {
	if len(parents) == 0 {
		return nil, false
	}
	vals := make([]any, len(parents))
	for i, parent := range parents {
		cr, ok := parent.(core.ConstantResult)
		if !ok {
			return nil, false
		}
		v, ok := cr.ConstantValue()
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}
