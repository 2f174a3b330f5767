// Package progress streams a Prepare/Apply run's lifecycle events to
// connected websocket clients, implementing monitor.ExecutionObserver. A
// single Hub goroutine owns client (de)registration and broadcast over
// channels; one Client goroutine pair per connection does the actual
// socket I/O.
package progress

import "time"

// Event types for every monitor.ExecutionObserver callback.
const (
	EventGenerationStarted   = "generation.started"
	EventGenerationFinished  = "generation.finished"
	EventProducerPrepared    = "producer.prepared"
	EventMinibatchApplied    = "minibatch.applied"
	EventExecutionFailed     = "execution.failed"
	EventExecutionCancelled  = "execution.cancelled"
)

// Event is a single run lifecycle event, JSON-serialized to every
// subscribed client.
type Event struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	Generation int       `json:"generation,omitempty"`
	Producers  int       `json:"producers,omitempty"`
	Producer   string    `json:"producer,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	BatchSize  int       `json:"batch_size,omitempty"`
	Error      string    `json:"error,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}
