package core

import "github.com/google/uuid"

// Handle is the process-wide identity of a producer. Two producers compare
// equal under handle equality iff their handles are equal; handles survive
// WithParents clones and serialization round-trips. A producer that
// reduction replaces outright (folded to a Constant, collapsed by a
// reducer, or deduplicated) is replaced together with its handle.
type Handle struct {
	id   uuid.UUID
	kind string
}

// NewHandle allocates a fresh handle tagged with kind, the producer class
// name used for diagnostics and for the reducer's class-indexed registry
// lookup key.
func NewHandle(kind string) Handle {
	return Handle{id: uuid.New(), kind: kind}
}

// RestoreHandle rebuilds a handle with a caller-supplied identity rather
// than minting a fresh one. Used by codec.Decode to give a deserialized
// producer back the exact handle it was encoded with, so a decoded DAG
// compares equal by handle to the original.
func RestoreHandle(id uuid.UUID, kind string) Handle {
	return Handle{id: id, kind: kind}
}

// ID returns the underlying 128-bit identity.
func (h Handle) ID() uuid.UUID { return h.id }

// Kind returns the producer class tag this handle was minted with.
func (h Handle) Kind() string { return h.kind }

// IsZero reports whether h is the unset handle.
func (h Handle) IsZero() bool { return h.id == uuid.Nil }

func (h Handle) String() string {
	if h.IsZero() {
		return "handle(nil)"
	}
	return h.kind + ":" + h.id.String()
}
