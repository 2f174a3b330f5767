package execengine

import (
	"context"
	"sync"
	"time"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/engerr"
	"github.com/smilemakc/dagml/internal/graph"
	"github.com/smilemakc/dagml/internal/monitor"
	"github.com/smilemakc/dagml/internal/objstream"
	"github.com/smilemakc/dagml/internal/prepare"
)

// Engine drives both phases of execution. One Engine is reused across
// runs; it holds no per-run state itself.
type Engine struct {
	opts      Options
	observers *monitor.ObserverManager
}

// NewEngine returns an Engine configured by opts, fanning lifecycle events
// out to observers (may be nil, in which case events are dropped).
func NewEngine(opts Options, observers *monitor.ObserverManager) *Engine {
	if observers == nil {
		observers = monitor.NewObserverManager()
	}
	return &Engine{opts: opts, observers: observers}
}

// Prepare drives every PreparableTransformer in g through its preparer's
// STREAM/BATCH contract, in topological generations, splicing in each
// preparer's learned PreparedTransformer (and resolving any Views over it)
// before moving to the generation that depends on it, then returns the
// fully prepared DAG. data supplies preparation example rows; each row's
// values are positioned to match g.Placeholders().
func (e *Engine) Prepare(ctx context.Context, g *graph.Graph, data objstream.Reader) (*PreparedDAG, error) {
	order := g.TopoOrder()
	nodes := g.Nodes()
	generations := computeGenerations(order, nodes)

	placeholderIndex := make(map[core.Handle]int, len(g.Placeholders()))
	for i, ph := range g.Placeholders() {
		placeholderIndex[ph.Handle()] = i
	}

	current := make(map[core.Handle]core.Producer, len(nodes))

	for genIdx, handles := range generations {
		select {
		case <-ctx.Done():
			e.observers.OnExecutionCancelled("context cancelled during prepare")
			return nil, engerr.ExecutionCancelled("prepare cancelled at generation %d: %v", genIdx, ctx.Err())
		default:
		}

		e.observers.OnGenerationStart(genIdx, handles)
		start := time.Now()

		if err := e.prepareGeneration(ctx, handles, nodes, current, data, placeholderIndex); err != nil {
			return nil, err
		}

		e.observers.OnGenerationEnd(genIdx, time.Since(start))
	}

	outputs := make([]core.Producer, len(g.Outputs()))
	for i, out := range g.Outputs() {
		outputs[i] = current[out.Handle()]
	}

	prepared := &PreparedDAG{
		outputs:      outputs,
		placeholders: g.Placeholders(),
		nodes:        make(map[core.Handle]core.Producer, len(current)),
	}
	for _, p := range current {
		prepared.nodes[p.Handle()] = p
	}
	preparedOrder, preparedGraph, err := rebuildOrder(prepared.outputs, prepared.placeholders)
	if err != nil {
		return nil, err
	}
	prepared.order = preparedOrder
	prepared.nodes = preparedGraph.Nodes()
	prepared.generations = computeGenerations(preparedOrder, prepared.nodes)

	return prepared, nil
}

func rebuildOrder(outputs []core.Producer, placeholders []*core.Placeholder) ([]core.Handle, *graph.Graph, error) {
	g, err := graph.Build(outputs, placeholders)
	if err != nil {
		return nil, nil, err
	}
	return g.TopoOrder(), g, nil
}

func (e *Engine) prepareGeneration(
	ctx context.Context,
	handles []core.Handle,
	original map[core.Handle]core.Producer,
	current map[core.Handle]core.Producer,
	data objstream.Reader,
	placeholderIndex map[core.Handle]int,
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

			p := original[h]
			resolved, err := e.prepareNode(ctx, h, p, original, current, &mu, data, placeholderIndex)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			current[h] = resolved
			mu.Unlock()
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

func (e *Engine) prepareNode(
	ctx context.Context,
	h core.Handle,
	p core.Producer,
	original map[core.Handle]core.Producer,
	current map[core.Handle]core.Producer,
	mu *sync.Mutex,
	data objstream.Reader,
	placeholderIndex map[core.Handle]int,
) (core.Producer, error) {
	switch v := p.(type) {
	case *core.View:
		mu.Lock()
		parentResolved := current[v.PreparableParent().Handle()]
		mu.Unlock()
		if parentResolved == nil {
			return nil, engerr.GraphValidation("view %s's preparable parent was not yet resolved", h)
		}
		return parentResolved, nil

	case *core.PreparableTransformer:
		return e.drivePreparer(ctx, v, current, mu, data, placeholderIndex)

	default:
		resolvedParents, changed := relinkParents(p, current, mu)
		if changed {
			return p.WithParents(resolvedParents), nil
		}
		return p, nil
	}
}

func relinkParents(p core.Producer, current map[core.Handle]core.Producer, mu *sync.Mutex) ([]core.Producer, bool) {
	parents := p.Parents()
	if len(parents) == 0 {
		return nil, false
	}
	out := make([]core.Producer, len(parents))
	changed := false
	mu.Lock()
	defer mu.Unlock()
	for i, parent := range parents {
		if isMissingInput(parent) {
			out[i] = parent
			continue
		}
		replacement := current[parent.Handle()]
		if replacement == nil {
			replacement = parent
		}
		out[i] = replacement
		if replacement != parent {
			changed = true
		}
	}
	return out, changed
}

func (e *Engine) drivePreparer(
	ctx context.Context,
	v *core.PreparableTransformer,
	current map[core.Handle]core.Producer,
	mu *sync.Mutex,
	data objstream.Reader,
	placeholderIndex map[core.Handle]int,
) (core.Producer, error) {
	start := time.Now()

	resolvedParents, _ := relinkParents(v, current, mu)

	allConstant := true
	for _, parent := range resolvedParents {
		if _, ok := parent.(core.ConstantResult); !ok {
			allConstant = false
			break
		}
	}

	preparer := v.NewPreparer()
	gather := prepare.ShouldGather(preparer, allConstant)

	var examples [][]any
	if gather {
		if err := data.Rewind(); err != nil {
			return nil, engerr.ExecutionFailure(err, "rewinding preparation data for %s", v.Handle())
		}
		exampleIndex := 0
		for {
			select {
			case <-ctx.Done():
				return nil, engerr.ExecutionCancelled("prepare cancelled gathering data for %s: %v", v.Handle(), ctx.Err())
			default:
			}
			row, ok := data.Next()
			if !ok {
				break
			}
			values := resolveParentValuesForRow(resolvedParents, row, placeholderIndex, exampleIndex)
			examples = append(examples, values)
			exampleIndex++
		}
	}

	driver := prepare.NewDriver()
	var rt *core.PreparedTransformer
	var err error

	switch pp := preparer.(type) {
	case prepare.StreamPreparer:
		rt, err = driver.DriveStream(pp, examples)
	case prepare.BatchPreparer:
		writer := objstream.NewWriter(e.opts.SpillThresholdBytes)
		for _, ex := range examples {
			if werr := writer.Write(ex); werr != nil {
				return nil, engerr.ExecutionFailure(werr, "buffering preparation data for %s", v.Handle())
			}
		}
		reader, rerr := writer.Reader()
		if rerr != nil {
			return nil, engerr.ExecutionFailure(rerr, "reading buffered preparation data for %s", v.Handle())
		}
		defer reader.Close()
		rt, err = driver.DriveBatch(pp, reader)
	default:
		return nil, engerr.PreparerContractViolation("preparer for %s implements neither StreamPreparer nor BatchPreparer", v.Handle())
	}
	if err != nil {
		e.observers.OnExecutionFailed(v.Handle(), err)
		return nil, err
	}

	result := rt.WithParents(resolvedParents).(*core.PreparedTransformer)
	e.observers.OnProducerPrepared(v.Handle(), time.Since(start))
	return result, nil
}

// resolveParentValuesForRow evaluates every parent's value for one
// preparation example, recursively walking already-resolved ancestor
// producers. Every parent here belongs to an earlier generation than the
// PreparableTransformer being prepared, so it is guaranteed to already be
// one of Placeholder/Generator/Constant/PreparedTransformer.
func resolveParentValuesForRow(parents []core.Producer, row []any, placeholderIndex map[core.Handle]int, exampleIndex int) []any {
	memo := make(map[core.Handle]any, len(parents)*2)
	out := make([]any, len(parents))
	for i, parent := range parents {
		out[i] = evalValue(parent, row, placeholderIndex, exampleIndex, memo)
	}
	return out
}

func evalValue(p core.Producer, row []any, placeholderIndex map[core.Handle]int, exampleIndex int, memo map[core.Handle]any) any {
	if isMissingInput(p) {
		return nil
	}
	h := p.Handle()
	if v, ok := memo[h]; ok {
		return v
	}

	var result any
	switch v := p.(type) {
	case *core.Placeholder:
		result = row[placeholderIndex[h]]
	case *core.Generator:
		result = v.Generate(exampleIndex)
	case *core.Constant:
		result, _ = v.ConstantValue()
	case *core.PreparedTransformer:
		inputs := make([]any, len(v.Parents()))
		for i, parent := range v.Parents() {
			inputs[i] = evalValue(parent, row, placeholderIndex, exampleIndex, memo)
		}
		result = v.Apply(inputs)
	default:
		panic("dagml/execengine: unresolved producer kind encountered while gathering preparation data")
	}

	memo[h] = result
	return result
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
