package core

import "github.com/google/uuid"

// ApplyFunc is the per-example application function behind a
// PreparedTransformer: it receives the resolved values of the producer's
// parents, in positional order, and returns the producer's output value.
type ApplyFunc func(inputs []any) any

// BatchApplyFunc is the minibatched alternative to ApplyFunc: it receives
// every example in the minibatch at once (inputs[i] is the i-th example's
// resolved parent values) and returns one output per example. A producer
// that opts into this (vectorizable math, a single round-trip to an
// external service) lets the executor skip per-example dispatch entirely
// for that node.
type BatchApplyFunc func(inputs [][]any) []any

// PreparedTransformer is a stateless transformer: its ApplyFunc is fixed at
// construction time and never changes, so the executor may run it directly
// during the apply phase without ever entering the prepare phase.
type PreparedTransformer struct {
	base
	name       string
	apply      ApplyFunc
	batchApply BatchApplyFunc
	always     bool // always-constant: reducer folds this producer if every parent is constant
}

// NewPreparedTransformer builds a stateless transformer over parents,
// applying fn to their resolved values. alwaysConstant marks transformers
// whose output depends only on their inputs with no external randomness or
// side effects -- such a transformer becomes a Constant under reduction
// once every parent is constant.
func NewPreparedTransformer(name string, alwaysConstant bool, fn ApplyFunc, parents ...Producer) *PreparedTransformer {
	return &PreparedTransformer{
		base:   base{handle: NewHandle("prepared:" + name), policy: HandleEquality, parents: cloneParents(parents)},
		name:   name,
		apply:  fn,
		always: alwaysConstant,
	}
}

// RestorePreparedTransformer rebuilds a stateless transformer with a
// caller-supplied handle identity, for codec.Decode to reconstruct a
// previously-encoded transformer under its original handle rather than a
// fresh one.
func RestorePreparedTransformer(id uuid.UUID, name string, alwaysConstant bool, fn ApplyFunc, parents ...Producer) *PreparedTransformer {
	return &PreparedTransformer{
		base:   base{handle: RestoreHandle(id, "prepared:"+name), policy: HandleEquality, parents: cloneParents(parents)},
		name:   name,
		apply:  fn,
		always: alwaysConstant,
	}
}

func (t *PreparedTransformer) Name() string           { return t.name }
func (t *PreparedTransformer) AlwaysConstant() bool    { return t.always }
func (t *PreparedTransformer) Apply(inputs []any) any { return t.apply(inputs) }

// WithBatchApply returns a clone that additionally opts into minibatched
// application via fn; the executor prefers BatchApply over per-example
// Apply whenever it is present.
func (t *PreparedTransformer) WithBatchApply(fn BatchApplyFunc) *PreparedTransformer {
	clone := *t
	clone.batchApply = fn
	return &clone
}

// BatchApply returns the transformer's minibatched apply function and true
// if it opted in via WithBatchApply.
func (t *PreparedTransformer) BatchApply() (BatchApplyFunc, bool) {
	return t.batchApply, t.batchApply != nil
}

// WithValueEquality returns a clone opted into value-equality
// deduplication: the reducer may fold it together with any other
// value-equal producer of the same name and parents. Off by default
// (HandleEquality) because two transformers with the same name/parents are
// not necessarily interchangeable unless the caller knows their ApplyFunc
// is pure and name-determined, which only the caller can assert.
func (t *PreparedTransformer) WithValueEquality() *PreparedTransformer {
	clone := *t
	clone.policy = ValueEquality
	return &clone
}

func (t *PreparedTransformer) ValueHash() uint64 {
	return t.cachedHash(func() uint64 {
		handles := make([]Handle, len(t.parents))
		for i, p := range t.parents {
			handles[i] = p.Handle()
		}
		return fnv1a64(hashAny(t.name), handles...)
	})
}

func (t *PreparedTransformer) ValueEqual(other Producer) bool {
	o, ok := other.(*PreparedTransformer)
	if !ok || o.name != t.name || len(o.parents) != len(t.parents) {
		return false
	}
	for i := range t.parents {
		if t.parents[i].Handle() != o.parents[i].Handle() {
			return false
		}
	}
	return true
}

func (t *PreparedTransformer) WithParents(parents []Producer) Producer {
	clone := *t
	clone.parents = cloneParents(parents)
	clone.hashOnce = false
	return &clone
}

// PreparableTransformer is a transformer whose apply-phase behavior is
// learned from the training data during the prepare phase, via a Preparer
// (see package internal/prepare). The DAG executor drives the preparer and
// replaces this node with a PreparedTransformer before the apply phase.
type PreparableTransformer struct {
	base
	name        string
	newPreparer func() Preparer
}

// Preparer is implemented by the stateful object supplied to a
// PreparableTransformer; see internal/prepare for the STREAM/BATCH
// contract concrete preparers satisfy. It is declared here, rather than in
// internal/prepare, so PreparableTransformer can reference it without an
// import cycle; internal/prepare's exported types satisfy this interface
// structurally.
type Preparer interface {
	// ResultTransformer returns the PreparedTransformer this preparer has
	// learned, to splice in for the parents it was given. Called once the
	// DAG executor has finished driving the preparer's STREAM/BATCH
	// contract (see internal/prepare.Driver).
	ResultTransformer() (*PreparedTransformer, error)
}

// NewPreparableTransformer builds a transformer whose behavior is learned
// at prepare time. newPreparer must return a fresh Preparer instance each
// call (preparers are not assumed reusable across runs).
func NewPreparableTransformer(name string, newPreparer func() Preparer, parents ...Producer) *PreparableTransformer {
	return &PreparableTransformer{
		base:        base{handle: NewHandle("preparable:" + name), policy: HandleEquality, parents: cloneParents(parents)},
		name:        name,
		newPreparer: newPreparer,
	}
}

func (t *PreparableTransformer) Name() string       { return t.name }
func (t *PreparableTransformer) NewPreparer() Preparer { return t.newPreparer() }

func (t *PreparableTransformer) ValueHash() uint64 {
	return t.cachedHash(func() uint64 { return fnv1a64(hashAny(t.name), t.handle) })
}

func (t *PreparableTransformer) ValueEqual(other Producer) bool {
	o, ok := other.(*PreparableTransformer)
	return ok && o.handle == t.handle
}

func (t *PreparableTransformer) WithParents(parents []Producer) Producer {
	clone := *t
	clone.parents = cloneParents(parents)
	clone.hashOnce = false
	return &clone
}
