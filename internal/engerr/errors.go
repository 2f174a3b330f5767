// Package engerr defines the typed error taxonomy shared by every
// dagml package: graph validation, reduction, preparer-contract
// violations, execution failures and cancellation, and serialization
// errors. Shaped as a stable string code plus Unwrap, the common pattern
// for a small typed error taxonomy shared across package boundaries.
package engerr

import "fmt"

// Kind identifies the broad category of a dagml error, independent of the
// human-readable message, so callers can switch on it with errors.As.
type Kind string

const (
	KindGraphValidation       Kind = "graph_validation"
	KindReducerBudgetExceeded Kind = "reducer_budget_exceeded"
	KindPreparerContract      Kind = "preparer_contract_violation"
	KindExecutionFailure      Kind = "execution_failure"
	KindExecutionCancelled    Kind = "execution_cancelled"
	KindSerialization         Kind = "serialization_error"
)

// Error is the concrete type behind every error dagml returns from a
// public API. Code is stable and suitable for programmatic dispatch;
// Message is human-readable; Cause is the wrapped underlying error, if any.
type Error struct {
	Code    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dagml: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("dagml: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, &Error{Code: KindX}) match on code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return true
}

func newErr(code Kind, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// GraphValidation reports a structural defect discovered while building or
// validating a DAG (cycle, unreachable output, duplicate placeholder,
// handle collision across distinct classes, a View surviving to output).
func GraphValidation(format string, args ...any) *Error {
	return newErr(KindGraphValidation, nil, format, args...)
}

// ReducerBudgetExceeded reports that the fixed-point reducer's worklist
// round budget was exhausted without reaching confluence, most likely
// because two node-local or class-indexed reducers are rewriting a
// producer back and forth.
func ReducerBudgetExceeded(rounds int) *Error {
	return newErr(KindReducerBudgetExceeded, nil, "reduction did not converge after %d rounds", rounds)
}

// PreparerContractViolation reports that a Preparer violated the
// STREAM/BATCH contract -- e.g. being driven to finish twice, or
// implementing neither the STREAM nor the BATCH interface.
func PreparerContractViolation(format string, args ...any) *Error {
	return newErr(KindPreparerContract, nil, format, args...)
}

// ExecutionFailure wraps an error raised by a producer's Apply or a
// preparer's process/finish during a run, with the producer handle that
// raised it folded into the message by the caller.
func ExecutionFailure(cause error, format string, args ...any) *Error {
	return newErr(KindExecutionFailure, cause, format, args...)
}

// ExecutionCancelled reports that a run was cancelled via its context
// before completing; distinct from ExecutionFailure so callers can treat
// cancellation as expected control flow rather than a bug.
func ExecutionCancelled(format string, args ...any) *Error {
	return newErr(KindExecutionCancelled, nil, format, args...)
}

// Serialization reports a failure encoding or decoding a DAG.
func Serialization(cause error, format string, args ...any) *Error {
	return newErr(KindSerialization, cause, format, args...)
}
