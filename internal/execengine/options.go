// Package execengine is the two-phase DAG executor: it schedules a
// reduced DAG into topological generations, drives each
// PreparableTransformer's Preparer through the prepare phase (splicing
// its emitted Views back into the schedule as soon as it finishes),
// then applies the fully-prepared DAG to minibatches of examples with a
// bounded worker pool, gating each generation's completion on every
// worker finishing its minibatch.
package execengine

import (
	"runtime"
	"time"
)

// Options configures a run, constructed via the functional-options
// pattern on top of DefaultOptions.
type Options struct {
	MinibatchSize            int
	InferenceMinibatchSize   int
	WorkerCount              int
	MaxEpochs                int
	MaxTrainingSeconds       time.Duration
	EvaluationHoldoutFraction float64
	RandomSeed                int64
	SpillThresholdBytes       int64
	ReducerBudget             int
}

// Option mutates Options; passed to New in order.
type Option func(*Options)

// DefaultOptions returns the engine's baseline configuration.
func DefaultOptions() Options {
	return Options{
		MinibatchSize:             64,
		InferenceMinibatchSize:    64,
		WorkerCount:               runtime.NumCPU(),
		MaxEpochs:                 16,
		MaxTrainingSeconds:        0, // 0 = unbounded
		EvaluationHoldoutFraction: 0,
		RandomSeed:                1,
		SpillThresholdBytes:       64 << 20, // 64 MiB
		ReducerBudget:             1000,
	}
}

func WithMinibatchSize(n int) Option          { return func(o *Options) { o.MinibatchSize = n } }
func WithInferenceMinibatchSize(n int) Option { return func(o *Options) { o.InferenceMinibatchSize = n } }
func WithWorkerCount(n int) Option            { return func(o *Options) { o.WorkerCount = n } }
func WithMaxEpochs(n int) Option              { return func(o *Options) { o.MaxEpochs = n } }
func WithMaxTrainingSeconds(d time.Duration) Option {
	return func(o *Options) { o.MaxTrainingSeconds = d }
}
func WithEvaluationHoldoutFraction(f float64) Option {
	return func(o *Options) { o.EvaluationHoldoutFraction = f }
}
func WithRandomSeed(seed int64) Option { return func(o *Options) { o.RandomSeed = seed } }
func WithSpillThresholdBytes(n int64) Option {
	return func(o *Options) { o.SpillThresholdBytes = n }
}
func WithReducerBudget(n int) Option { return func(o *Options) { o.ReducerBudget = n } }

// New builds Options from DefaultOptions with opts applied in order.
func New(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
