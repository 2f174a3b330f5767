// Package monitor implements execution observability: a fan-out
// ExecutionObserver/ObserverManager pair (observers registered under a
// read-write mutex) and a Collector that aggregates counters into
// RunMetrics, persistable to a JSON file.
package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/smilemakc/dagml/internal/core"
)

// ExecutionObserver receives lifecycle callbacks from a single DAG
// Prepare/Apply run. Every method may be called concurrently from
// multiple worker goroutines within a generation; implementations must be
// safe for concurrent use.
type ExecutionObserver interface {
	OnGenerationStart(generation int, producers []core.Handle)
	OnGenerationEnd(generation int, elapsed time.Duration)
	OnProducerPrepared(h core.Handle, elapsed time.Duration)
	OnMinibatchApplied(h core.Handle, size int, elapsed time.Duration)
	OnExecutionFailed(h core.Handle, err error)
	OnExecutionCancelled(reason string)
}

// ObserverManager fans every ExecutionObserver call out to a registered
// set of observers.
type ObserverManager struct {
	mu        sync.RWMutex
	observers []ExecutionObserver
}

// NewObserverManager returns an empty manager.
func NewObserverManager() *ObserverManager { return &ObserverManager{} }

// Register adds an observer. Safe to call while a run is in progress.
func (m *ObserverManager) Register(o ExecutionObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *ObserverManager) snapshot() []ExecutionObserver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ExecutionObserver, len(m.observers))
	copy(out, m.observers)
	return out
}

func (m *ObserverManager) OnGenerationStart(generation int, producers []core.Handle) {
	for _, o := range m.snapshot() {
		o.OnGenerationStart(generation, producers)
	}
}

func (m *ObserverManager) OnGenerationEnd(generation int, elapsed time.Duration) {
	for _, o := range m.snapshot() {
		o.OnGenerationEnd(generation, elapsed)
	}
}

func (m *ObserverManager) OnProducerPrepared(h core.Handle, elapsed time.Duration) {
	for _, o := range m.snapshot() {
		o.OnProducerPrepared(h, elapsed)
	}
}

func (m *ObserverManager) OnMinibatchApplied(h core.Handle, size int, elapsed time.Duration) {
	for _, o := range m.snapshot() {
		o.OnMinibatchApplied(h, size, elapsed)
	}
}

func (m *ObserverManager) OnExecutionFailed(h core.Handle, err error) {
	for _, o := range m.snapshot() {
		o.OnExecutionFailed(h, err)
	}
}

func (m *ObserverManager) OnExecutionCancelled(reason string) {
	for _, o := range m.snapshot() {
		o.OnExecutionCancelled(reason)
	}
}

// LogObserver is an ExecutionObserver that writes structured zerolog
// events for every lifecycle callback.
type LogObserver struct{}

// NewLogObserver returns an observer that logs every callback at debug
// level (error for failures, warn for cancellation).
func NewLogObserver() *LogObserver { return &LogObserver{} }

func (LogObserver) OnGenerationStart(generation int, producers []core.Handle) {
	log.Debug().Int("generation", generation).Int("producers", len(producers)).Msg("generation started")
}

func (LogObserver) OnGenerationEnd(generation int, elapsed time.Duration) {
	log.Debug().Int("generation", generation).Dur("elapsed", elapsed).Msg("generation finished")
}

func (LogObserver) OnProducerPrepared(h core.Handle, elapsed time.Duration) {
	log.Debug().Str("producer", h.String()).Dur("elapsed", elapsed).Msg("producer prepared")
}

func (LogObserver) OnMinibatchApplied(h core.Handle, size int, elapsed time.Duration) {
	log.Debug().Str("producer", h.String()).Int("size", size).Dur("elapsed", elapsed).Msg("minibatch applied")
}

func (LogObserver) OnExecutionFailed(h core.Handle, err error) {
	log.Error().Str("producer", h.String()).Err(err).Msg("execution failed")
}

func (LogObserver) OnExecutionCancelled(reason string) {
	log.Warn().Str("reason", reason).Msg("execution cancelled")
}
