// Package dagflow is the typed public entry point for building, reducing,
// preparing and applying a dagml DAG end to end. It is a thin fluent
// wrapper over internal/graph, internal/reduce and internal/execengine,
// wrapping the internal engine behind typed builder methods.
package dagflow

import (
	"context"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/engerr"
	"github.com/smilemakc/dagml/internal/execengine"
	"github.com/smilemakc/dagml/internal/graph"
	"github.com/smilemakc/dagml/internal/monitor"
	"github.com/smilemakc/dagml/internal/objstream"
	"github.com/smilemakc/dagml/internal/reduce"
)

// Builder accumulates outputs and placeholders before compiling them into a
// Pipeline. Use New to start one.
type Builder struct {
	placeholders []*core.Placeholder
	outputs      []core.Producer
	registry     *reduce.Registry
	opts         execengine.Options
	observers    *monitor.ObserverManager
}

// New starts a Builder parameterized over the given placeholders, in the
// positional order Apply will expect row values to be supplied in.
func New(placeholders ...*core.Placeholder) *Builder {
	return &Builder{
		placeholders: placeholders,
		registry:     reduce.NewRegistry(),
		opts:         execengine.DefaultOptions(),
		observers:    monitor.NewObserverManager(),
	}
}

// WithOutputs sets the DAG's requested outputs.
func (b *Builder) WithOutputs(outputs ...core.Producer) *Builder {
	b.outputs = outputs
	return b
}

// WithClassReducer registers an advisory reducer that applies to every
// producer whose concrete type matches sample's.
func (b *Builder) WithClassReducer(sample core.Producer, cr reduce.ClassReducer) *Builder {
	b.registry.Register(sample, cr)
	return b
}

// WithOptions applies execution options on top of execengine.DefaultOptions.
func (b *Builder) WithOptions(opts ...execengine.Option) *Builder {
	b.opts = execengine.New(opts...)
	return b
}

// WithObserver registers an ExecutionObserver that receives lifecycle
// callbacks for every subsequent Prepare/Apply call on the compiled Pipeline.
func (b *Builder) WithObserver(o monitor.ExecutionObserver) *Builder {
	b.observers.Register(o)
	return b
}

// Compile validates the DAG, runs the fixed-point reducer to confluence,
// and returns a Pipeline ready for Prepare/Apply.
func (b *Builder) Compile() (*Pipeline, error) {
	g, err := graph.Build(b.outputs, b.placeholders)
	if err != nil {
		return nil, err
	}

	budget := reduce.NewBudget(b.opts.ReducerBudget)
	result, err := reduce.FixedPoint(g, b.registry, budget)
	if err != nil {
		return nil, err
	}

	reduced, err := graph.Build(result.Outputs, result.Placeholders)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		graph:  reduced,
		engine: execengine.NewEngine(b.opts, b.observers),
		rounds: result.Rounds,
	}, nil
}

// Pipeline is a compiled, reduced DAG ready to be driven through the
// prepare and apply phases.
type Pipeline struct {
	graph  *graph.Graph
	engine *execengine.Engine
	rounds int

	prepared *execengine.PreparedDAG
}

// ReductionRounds reports how many fixed-point rounds Compile needed to
// reach confluence.
func (p *Pipeline) ReductionRounds() int { return p.rounds }

// Prepare drives every PreparableTransformer in the compiled DAG through
// its STREAM/BATCH preparer contract using the given preparation examples,
// then caches the resulting prepared DAG on the Pipeline for Apply/ApplyAll.
func (p *Pipeline) Prepare(ctx context.Context, data objstream.Reader) error {
	prepared, err := p.engine.Prepare(ctx, p.graph, data)
	if err != nil {
		return err
	}
	p.prepared = prepared
	return nil
}

// Apply runs one minibatch of examples (rows aligned to Placeholders())
// through the prepared DAG, returning each example's output row in
// declaration order. Prepare must have been called first, even if the DAG
// has no PreparableTransformer (an empty preparation pass still splices
// the graph into its PreparedDAG form).
func (p *Pipeline) Apply(ctx context.Context, rows [][]any) ([][]any, error) {
	if p.prepared == nil {
		return nil, engerr.PreparerContractViolation("Apply called before Prepare")
	}
	return p.engine.Apply(ctx, p.prepared, rows)
}

// ApplyAll drives Apply over every example in data, minibatched at
// minibatchSize (or the pipeline's configured inference minibatch size if
// minibatchSize <= 0).
func (p *Pipeline) ApplyAll(ctx context.Context, data objstream.Reader, minibatchSize int) ([][]any, error) {
	if p.prepared == nil {
		return nil, engerr.PreparerContractViolation("ApplyAll called before Prepare")
	}
	return p.engine.ApplyAll(ctx, p.prepared, data, minibatchSize)
}

// Placeholders returns the compiled DAG's declared placeholders, in the
// order Apply expects row values to be supplied in.
func (p *Pipeline) Placeholders() []*core.Placeholder {
	if p.prepared != nil {
		return p.prepared.Placeholders()
	}
	return p.graph.Placeholders()
}

// Outputs returns the compiled DAG's requested outputs, post-reduction.
func (p *Pipeline) Outputs() []core.Producer {
	if p.prepared != nil {
		return p.prepared.Outputs()
	}
	return p.graph.Outputs()
}
