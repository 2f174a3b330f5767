package execengine

import (
	"context"
	"sync"
	"time"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/engerr"
	"github.com/smilemakc/dagml/internal/objstream"
)

// Apply runs a minibatch of examples through every generation of dag,
// preferring each node's BatchApplyFunc (one call over the whole minibatch)
// over per-example ApplyFunc, and returns one row of output values per
// output producer per example: result[i][j] is outputs()[j]'s value for
// rows[i]. rows[i] must align positionally with dag.Placeholders().
func (e *Engine) Apply(ctx context.Context, dag *PreparedDAG, rows [][]any) ([][]any, error) {
	n := len(rows)
	if n == 0 {
		return nil, nil
	}

	placeholderIndex := make(map[core.Handle]int, len(dag.placeholders))
	for i, ph := range dag.placeholders {
		placeholderIndex[ph.Handle()] = i
	}

	values := make(map[core.Handle][]any, len(dag.nodes))

	for genIdx, handles := range dag.generations {
		select {
		case <-ctx.Done():
			e.observers.OnExecutionCancelled("context cancelled during apply")
			return nil, engerr.ExecutionCancelled("apply cancelled at generation %d: %v", genIdx, ctx.Err())
		default:
		}

		if err := e.applyGeneration(ctx, handles, dag, rows, placeholderIndex, values); err != nil {
			return nil, err
		}
	}

	outputs := dag.Outputs()
	result := make([][]any, n)
	for row := 0; row < n; row++ {
		result[row] = make([]any, len(outputs))
		for j, out := range outputs {
			result[row][j] = values[out.Handle()][row]
		}
	}
	return result, nil
}

func (e *Engine) applyGeneration(
	ctx context.Context,
	handles []core.Handle,
	dag *PreparedDAG,
	rows [][]any,
	placeholderIndex map[core.Handle]int,
	values map[core.Handle][]any,
) error {
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxInt(1, e.opts.WorkerCount))
	errs := make(chan error, len(handles))

	for _, h := range handles {
		h := h
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			p := dag.nodes[h]
			start := time.Now()
			out, err := e.applyNode(ctx, p, rows, placeholderIndex, &mu, values)
			if err != nil {
				e.observers.OnExecutionFailed(h, err)
				errs <- err
				return
			}

			mu.Lock()
			values[h] = out
			mu.Unlock()
			e.observers.OnMinibatchApplied(h, len(rows), time.Since(start))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyNode(
	ctx context.Context,
	p core.Producer,
	rows [][]any,
	placeholderIndex map[core.Handle]int,
	mu *sync.Mutex,
	values map[core.Handle][]any,
) ([]any, error) {
	select {
	case <-ctx.Done():
		return nil, engerr.ExecutionCancelled("apply cancelled evaluating %s: %v", p.Handle(), ctx.Err())
	default:
	}

	switch v := p.(type) {
	case *core.Placeholder:
		idx := placeholderIndex[v.Handle()]
		out := make([]any, len(rows))
		for i, row := range rows {
			out[i] = row[idx]
		}
		return out, nil

	case *core.Generator:
		out := make([]any, len(rows))
		for i := range rows {
			out[i] = v.Generate(i)
		}
		return out, nil

	case *core.Constant:
		val, _ := v.ConstantValue()
		out := make([]any, len(rows))
		for i := range out {
			out[i] = val
		}
		return out, nil

	case *core.PreparedTransformer:
		inputs := gatherInputs(v.Parents(), rows, mu, values)
		if batchFn, ok := v.BatchApply(); ok {
			out, err := recoverApply(v.Handle(), func() []any { return batchFn(inputs) })
			if err != nil {
				return nil, err
			}
			if len(out) != len(rows) {
				return nil, engerr.ExecutionFailure(nil, "batch apply for %s returned %d values for %d examples", v.Handle(), len(out), len(rows))
			}
			return out, nil
		}
		out := make([]any, len(rows))
		for i := range rows {
			val, err := recoverApplyOne(v.Handle(), func() any { return v.Apply(inputs[i]) })
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil

	default:
		return nil, engerr.ExecutionFailure(nil, "producer %s is not one of Placeholder/Generator/Constant/PreparedTransformer; did it reach Apply unprepared?", p.Handle())
	}
}

// recoverApplyOne calls fn and converts a panic into an ExecutionFailure,
// so a producer that signals failure by panicking (the idiom an
// external-collaborator ApplyFunc uses, since ApplyFunc has no error
// return) degrades the run gracefully instead of crashing the executor.
func recoverApplyOne(h core.Handle, fn func() any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = applyPanicToError(h, r)
		}
	}()
	return fn(), nil
}

func recoverApply(h core.Handle, fn func() []any) (out []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = applyPanicToError(h, r)
		}
	}()
	return fn(), nil
}

func applyPanicToError(h core.Handle, r any) error {
	if e, ok := r.(*engerr.Error); ok {
		return e
	}
	if e, ok := r.(error); ok {
		return engerr.ExecutionFailure(e, "producer %s panicked during apply", h)
	}
	return engerr.ExecutionFailure(nil, "producer %s panicked during apply: %v", h, r)
}

// gatherInputs assembles, per example, the resolved values of parents in
// positional order: inputs[i][k] is parents[k]'s value for example i.
// Parents wired to MissingInput contribute a nil value for every example.
func gatherInputs(parents []core.Producer, rows [][]any, mu *sync.Mutex, values map[core.Handle][]any) [][]any {
	inputs := make([][]any, len(rows))
	for i := range inputs {
		inputs[i] = make([]any, len(parents))
	}

	mu.Lock()
	defer mu.Unlock()
	for k, parent := range parents {
		if isMissingInput(parent) {
			continue
		}
		parentValues := values[parent.Handle()]
		for i := range rows {
			inputs[i][k] = parentValues[i]
		}
	}
	return inputs
}

// ApplyAll drives Apply over every example in data, minibatching it into
// chunks of minibatchSize (e.opts.InferenceMinibatchSize if minibatchSize
// is <= 0) and running minibatches concurrently up to WorkerCount at a
// time, preserving input order in the returned results.
func (e *Engine) ApplyAll(ctx context.Context, dag *PreparedDAG, data objstream.Reader, minibatchSize int) ([][]any, error) {
	if minibatchSize <= 0 {
		minibatchSize = e.opts.InferenceMinibatchSize
	}
	if minibatchSize <= 0 {
		minibatchSize = 1
	}

	if err := data.Rewind(); err != nil {
		return nil, engerr.ExecutionFailure(err, "rewinding apply data")
	}

	var minibatches [][][]any
	var current [][]any
	for {
		row, ok := data.Next()
		if !ok {
			break
		}
		current = append(current, row)
		if len(current) == minibatchSize {
			minibatches = append(minibatches, current)
			current = nil
		}
	}
	if len(current) > 0 {
		minibatches = append(minibatches, current)
	}

	results := make([][][]any, len(minibatches))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxInt(1, e.opts.WorkerCount))
	errs := make(chan error, len(minibatches))

	for i, mb := range minibatches {
		i, mb := i, mb
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := e.Apply(ctx, dag, mb)
			if err != nil {
				errs <- err
				return
			}
			results[i] = out
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var out [][]any
	for _, mb := range results {
		out = append(out, mb...)
	}
	return out, nil
}
