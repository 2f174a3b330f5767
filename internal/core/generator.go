package core

import "github.com/google/uuid"

// Generator is a root producer that synthesizes a value per example from
// the example's ordinal position within a minibatch, independent of any
// placeholder. Typical uses: random seeds, example indices, constants that
// still need a per-example slot in the executor's value tables.
type Generator struct {
	base
	name string
	fn   func(exampleIndex int) any
}

// NewGenerator creates a generator that calls fn once per example during the
// apply phase, passing the example's position within the current minibatch
// (while preparation data is gathered, its position within that data).
func NewGenerator(name string, fn func(exampleIndex int) any) *Generator {
	return &Generator{
		base: base{handle: NewHandle("generator"), policy: HandleEquality},
		name: name,
		fn:   fn,
	}
}

// RestoreGenerator rebuilds a generator with a caller-supplied handle
// identity, for codec.Decode to reconstruct a previously-encoded generator
// under its original handle rather than a fresh one.
func RestoreGenerator(id uuid.UUID, name string, fn func(exampleIndex int) any) *Generator {
	return &Generator{
		base: base{handle: RestoreHandle(id, "generator"), policy: HandleEquality},
		name: name,
		fn:   fn,
	}
}

// Name returns the generator's diagnostic name.
func (g *Generator) Name() string { return g.name }

// Generate produces the value for the given example index.
func (g *Generator) Generate(exampleIndex int) any { return g.fn(exampleIndex) }

func (g *Generator) ValueHash() uint64 { return g.cachedHash(func() uint64 { return fnv1a64(0, g.handle) }) }

func (g *Generator) ValueEqual(other Producer) bool {
	o, ok := other.(*Generator)
	return ok && o.handle == g.handle
}

func (g *Generator) WithParents(parents []Producer) Producer {
	if len(parents) != 0 {
		panic("dagml: generator cannot have parents")
	}
	return g
}
