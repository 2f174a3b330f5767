// Package prepare implements the STREAM/BATCH preparer contract and the
// state machine that drives a PreparableTransformer's Preparer through it.
// The explicit guarded-transition state machine is modeled on the
// teacher's internal/application/executor/circuit_breaker.go
// (StateClosed/StateOpen/StateHalfOpen with validated transitions),
// generalized to a preparer's unstarted -> processing -> finished
// lifecycle.
package prepare

import (
	"fmt"
	"sync"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/engerr"
	"github.com/smilemakc/dagml/internal/objstream"
)

// Mode distinguishes a STREAM preparer (single pass over the data, emits
// successors once Finish is called) from a BATCH preparer (receives a
// restartable reader and may iterate the preparation data more than once
// inside Finish).
type Mode int

const (
	// Stream preparers see each preparation example exactly once via
	// Process, then produce their result from Finish with no further data.
	Stream Mode = iota
	// Batch preparers receive a restartable reader over the full
	// preparation set inside Finish and may read it more than once.
	Batch
)

// State is a preparer's lifecycle state.
type State int

const (
	Unstarted State = iota
	Processing
	Finished
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Processing:
		return "processing"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// StreamPreparer is implemented by a Mode-Stream preparer.
type StreamPreparer interface {
	core.Preparer
	// Process receives one preparation example's resolved parent values.
	Process(values []any) error
	// Finish is called once every preparation example has been passed to
	// Process. After Finish, ResultTransformer (from core.Preparer) must
	// return the learned transformer.
	Finish() error
}

// BatchPreparer is implemented by a Mode-Batch preparer.
type BatchPreparer interface {
	core.Preparer
	// Finish receives a restartable reader over every preparation
	// example's resolved parent values and may call reader.Rewind to
	// iterate more than once.
	Finish(reader objstream.Reader) error
}

// Idempotent is an optional interface a Preparer may implement to assert
// that repeated preparation over the same data always yields an
// equivalent result. The executor uses this to decide whether it may skip
// gathering preparation data at all when every parent of the
// PreparableTransformer is already constant. The conservative default (no
// Idempotent implementation, or IsIdempotent returning false) is to
// always gather.
type Idempotent interface {
	IsIdempotent() bool
}

// guardedState is the shared transition guard used by Driver: Unstarted ->
// Processing (on the first Process/Finish call) -> Finished (on Finish),
// with any other transition rejected as a PreparerContractViolation --
// mirroring circuit_breaker.go's explicit allowed-transition checks.
type guardedState struct {
	mu    sync.Mutex
	state State
}

func (g *guardedState) transition(to State) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.state == Unstarted && to == Processing:
	case g.state == Processing && to == Processing:
	case g.state == Processing && to == Finished:
	case g.state == Unstarted && to == Finished:
	default:
		return engerr.PreparerContractViolation("invalid preparer state transition %s -> %s", g.state, to)
	}
	g.state = to
	return nil
}

func (g *guardedState) current() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Driver runs a single PreparableTransformer's Preparer through its
// STREAM/BATCH contract and hands back the learned PreparedTransformer.
// One Driver is created per PreparableTransformer per run; the executor
// (internal/execengine) owns feeding it preparation data and calling
// Finish at the right point in the topological schedule.
type Driver struct {
	state guardedState
}

// NewDriver returns a driver in the Unstarted state.
func NewDriver() *Driver { return &Driver{} }

// State returns the driver's current lifecycle state.
func (d *Driver) State() State { return d.state.current() }

// DriveStream feeds values to a StreamPreparer's Process one call at a
// time, then calls Finish, enforcing the unstarted -> processing ->
// finished transition sequence.
func (d *Driver) DriveStream(p StreamPreparer, examples [][]any) (*core.PreparedTransformer, error) {
	if err := d.state.transition(Processing); err != nil {
		return nil, err
	}
	for _, values := range examples {
		if err := p.Process(values); err != nil {
			return nil, engerr.ExecutionFailure(err, "stream preparer Process failed")
		}
	}
	if err := p.Finish(); err != nil {
		return nil, engerr.ExecutionFailure(err, "stream preparer Finish failed")
	}
	if err := d.state.transition(Finished); err != nil {
		return nil, err
	}
	return result(p)
}

// DriveBatch hands reader to a BatchPreparer's Finish, enforcing the same
// transition sequence as DriveStream (a batch preparer has no Process
// step, but the driver still moves it through Processing to Finished).
func (d *Driver) DriveBatch(p BatchPreparer, reader objstream.Reader) (*core.PreparedTransformer, error) {
	if err := d.state.transition(Processing); err != nil {
		return nil, err
	}
	if err := p.Finish(reader); err != nil {
		return nil, engerr.ExecutionFailure(err, "batch preparer Finish failed")
	}
	if err := d.state.transition(Finished); err != nil {
		return nil, err
	}
	return result(p)
}

func result(p core.Preparer) (*core.PreparedTransformer, error) {
	rt, err := p.ResultTransformer()
	if err != nil {
		return nil, fmt.Errorf("dagml/prepare: %w", err)
	}
	return rt, nil
}

// ShouldGather reports whether the executor must gather preparation data
// for a PreparableTransformer at all: false only when every parent is
// already constant AND the preparer explicitly asserts idempotence.
func ShouldGather(preparer core.Preparer, allParentsConstant bool) bool {
	if !allParentsConstant {
		return true
	}
	idem, ok := preparer.(Idempotent)
	if !ok {
		return true
	}
	return !idem.IsIdempotent()
}
