package core

import "github.com/google/uuid"

// Constant is a zero-parent producer that always yields the same value.
// The reducer's constant-folding pass replaces an "always-constant"
// PreparedTransformer whose parents are all themselves constant with one
// of these; other producers are not folded.
type Constant struct {
	base
	value any
}

// NewConstant wraps value as a constant producer.
func NewConstant(value any) *Constant {
	return &Constant{
		base:  base{handle: NewHandle("constant"), policy: ValueEquality},
		value: value,
	}
}

// RestoreConstant rebuilds a constant with a caller-supplied handle
// identity, for codec.Decode to reconstruct a previously-encoded constant
// under its original handle rather than a fresh one.
func RestoreConstant(id uuid.UUID, value any) *Constant {
	return &Constant{
		base:  base{handle: RestoreHandle(id, "constant"), policy: ValueEquality},
		value: value,
	}
}

func (c *Constant) ConstantValue() (any, bool) { return c.value, true }

func (c *Constant) ValueHash() uint64 {
	return c.cachedHash(func() uint64 { return fnv1a64(hashAny(c.value)) })
}

func (c *Constant) ValueEqual(other Producer) bool {
	o, ok := other.(*Constant)
	if !ok {
		return false
	}
	return equalAny(c.value, o.value)
}

func (c *Constant) WithParents(parents []Producer) Producer {
	if len(parents) != 0 {
		panic("dagml: constant cannot have parents")
	}
	return c
}

// missingInputProducer is the process-wide sentinel substituted for an
// optional parent slot that was never wired. It carries the zero Handle and
// is never itself scheduled by the executor; the executor treats it as an
// instruction to pass the Go zero value for that input's type instead of
// resolving a real parent.
type missingInputProducer struct{ base }

var missingInput = &missingInputProducer{base: base{handle: Handle{kind: "missing-input"}, policy: HandleEquality}}

// MissingInput returns the process-wide singleton standing in for an
// optional producer input that was never connected.
func MissingInput() Producer { return missingInput }

func (m *missingInputProducer) ValueHash() uint64 { return 0 }
func (m *missingInputProducer) ValueEqual(other Producer) bool {
	_, ok := other.(*missingInputProducer)
	return ok
}
func (m *missingInputProducer) WithParents(parents []Producer) Producer {
	if len(parents) != 0 {
		panic("dagml: missing-input sentinel cannot have parents")
	}
	return m
}

func hashAny(v any) uint64 {
	const prime = 1099511628211
	h := uint64(14695981039346656037)
	for _, b := range []byte(stringify(v)) {
		h ^= uint64(b)
		h *= prime
	}
	return h
}

func equalAny(a, b any) bool {
	ac, aok := a.(interface{ Equal(any) bool })
	if aok {
		return ac.Equal(b)
	}
	return stringify(a) == stringify(b)
}

func stringify(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return sprintFallback(v)
}
