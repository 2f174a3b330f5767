package core

import "github.com/google/uuid"

// Placeholder is a root producer whose value is supplied per-example by the
// caller of Apply/ApplyAll. A DAG is parameterized over its placeholders.
type Placeholder struct {
	base
	name string
}

// NewPlaceholder creates a named placeholder. The name is cosmetic (used in
// diagnostics); identity is still carried by the Handle.
func NewPlaceholder(name string) *Placeholder {
	return &Placeholder{
		base: base{handle: NewHandle("placeholder"), policy: HandleEquality},
		name: name,
	}
}

// RestorePlaceholder rebuilds a placeholder with a caller-supplied handle
// identity, for codec.Decode to reconstruct a previously-encoded placeholder
// under its original handle rather than a fresh one.
func RestorePlaceholder(id uuid.UUID, name string) *Placeholder {
	return &Placeholder{
		base: base{handle: RestoreHandle(id, "placeholder"), policy: HandleEquality},
		name: name,
	}
}

// Name returns the placeholder's diagnostic name.
func (p *Placeholder) Name() string { return p.name }

func (p *Placeholder) ValueHash() uint64 { return p.cachedHash(func() uint64 { return fnv1a64(0, p.handle) }) }

func (p *Placeholder) ValueEqual(other Producer) bool {
	o, ok := other.(*Placeholder)
	return ok && o.handle == p.handle
}

// WithParents is a no-op for placeholders: they have no parents. It returns
// the receiver unchanged to satisfy the Producer interface.
func (p *Placeholder) WithParents(parents []Producer) Producer {
	if len(parents) != 0 {
		panic("dagml: placeholder cannot have parents")
	}
	return p
}
