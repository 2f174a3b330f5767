// Package dagml builds typed DAGs of producers -- composable, immutable
// computation nodes that a Reducer can rewrite and a two-phase executor
// can prepare and apply over minibatches of examples, in the spirit of
// LinkedIn's Dagli. The public types below are thin aliases over
// internal/core, re-exporting the internal engine types behind a small
// facade rather than exposing internal/ packages directly.
package dagml

import "github.com/smilemakc/dagml/internal/core"

type (
	// Handle is a producer's process-wide identity.
	Handle = core.Handle
	// Producer is the interface implemented by every DAG node.
	Producer = core.Producer
	// ConstantResult is implemented by producers proven to always yield
	// the same value.
	ConstantResult = core.ConstantResult
	// EqualityPolicy controls reducer deduplication behavior.
	EqualityPolicy = core.EqualityPolicy
	// Placeholder is a root producer supplied per-example by the caller.
	Placeholder = core.Placeholder
	// Generator is a root producer synthesizing a value from an example
	// index, independent of any placeholder.
	Generator = core.Generator
	// Constant is a zero-parent producer that always yields the same value.
	Constant = core.Constant
	// PreparedTransformer is a stateless transformer.
	PreparedTransformer = core.PreparedTransformer
	// PreparableTransformer learns its apply-phase behavior at prepare time.
	PreparableTransformer = core.PreparableTransformer
	// Preparer is implemented by the object driving a PreparableTransformer.
	Preparer = core.Preparer
	// View resolves to a preparer's emitted successor after prepare.
	View = core.View
	// ViewTag selects which emitted successor a View resolves to.
	ViewTag = core.ViewTag
	// ApplyFunc is a PreparedTransformer's per-example application function.
	ApplyFunc = core.ApplyFunc
	// TypedInput pairs a Producer with a static Go type for the arity helpers.
	TypedInput[T any] = core.TypedInput[T]
	// ConditionalProducer selects between two branch producers based on an
	// expr-lang boolean expression evaluated over named parent values.
	ConditionalProducer = core.ConditionalProducer
)

const (
	HandleEquality = core.HandleEquality
	ValueEquality  = core.ValueEquality

	ForPreparationData = core.ForPreparationData
	ForNewData          = core.ForNewData
)

var (
	NewHandle              = core.NewHandle
	NewPlaceholder          = core.NewPlaceholder
	NewGenerator            = core.NewGenerator
	NewConstant             = core.NewConstant
	NewPreparedTransformer  = core.NewPreparedTransformer
	NewPreparableTransformer = core.NewPreparableTransformer
	NewView                 = core.NewView
	MissingInput            = core.MissingInput
	NewConditionalProducer  = core.NewConditionalProducer
)

// Input wraps p as a typed input of T for use with Transform1/2/3.
func Input[T any](p Producer) TypedInput[T] { return core.Input[T](p) }

// Transform1 builds a PreparedTransformer with exactly one typed input.
func Transform1[A, R any](name string, alwaysConstant bool, fn func(A) R, a TypedInput[A]) *PreparedTransformer {
	return core.Transform1(name, alwaysConstant, fn, a)
}

// Transform2 builds a PreparedTransformer with exactly two typed inputs.
func Transform2[A, B, R any](name string, alwaysConstant bool, fn func(A, B) R, a TypedInput[A], b TypedInput[B]) *PreparedTransformer {
	return core.Transform2(name, alwaysConstant, fn, a, b)
}

// Transform3 builds a PreparedTransformer with exactly three typed inputs.
func Transform3[A, B, C, R any](name string, alwaysConstant bool, fn func(A, B, C) R, a TypedInput[A], b TypedInput[B], c TypedInput[C]) *PreparedTransformer {
	return core.Transform3(name, alwaysConstant, fn, a, b, c)
}
