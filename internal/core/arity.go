package core

// TypedInput wraps a Producer with a static Go type, so call sites building
// a transformer get a compile-time-checked arity instead of juggling raw
// []any slices by hand. A TypedInput is itself a thin, non-Producer handle:
// pass its Producer() to a transformer's parent list and its accessor
// functions into the arity helpers below.
type TypedInput[T any] struct{ p Producer }

// Input wraps p as a typed input of T. p's apply-time value must actually
// be assignable to T; the executor panics with a descriptive message if a
// parent yields the wrong type, since Go's type system cannot check this
// across the untyped DAG boundary.
func Input[T any](p Producer) TypedInput[T] { return TypedInput[T]{p: p} }

// Producer returns the wrapped producer.
func (t TypedInput[T]) Producer() Producer { return t.p }

func asT[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	tv, ok := v.(T)
	if !ok {
		panic("dagml: input type mismatch, expected different type for transformer parent")
	}
	return tv
}

// Transform1 builds a PreparedTransformer with exactly one typed input.
func Transform1[A, R any](name string, alwaysConstant bool, fn func(A) R, a TypedInput[A]) *PreparedTransformer {
	return NewPreparedTransformer(name, alwaysConstant, func(in []any) any {
		return fn(asT[A](in[0]))
	}, a.p)
}

// Transform2 builds a PreparedTransformer with exactly two typed inputs.
func Transform2[A, B, R any](name string, alwaysConstant bool, fn func(A, B) R, a TypedInput[A], b TypedInput[B]) *PreparedTransformer {
	return NewPreparedTransformer(name, alwaysConstant, func(in []any) any {
		return fn(asT[A](in[0]), asT[B](in[1]))
	}, a.p, b.p)
}

// Transform3 builds a PreparedTransformer with exactly three typed inputs.
func Transform3[A, B, C, R any](name string, alwaysConstant bool, fn func(A, B, C) R, a TypedInput[A], b TypedInput[B], c TypedInput[C]) *PreparedTransformer {
	return NewPreparedTransformer(name, alwaysConstant, func(in []any) any {
		return fn(asT[A](in[0]), asT[B](in[1]), asT[C](in[2]))
	}, a.p, b.p, c.p)
}
