package progress

import (
	"time"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/monitor"
)

// Observer adapts a Hub to monitor.ExecutionObserver, broadcasting every
// lifecycle callback as an Event tagged with runID -- grounded on the
// teacher's internal/infrastructure/websocket/observer.go, which performs
// the same ExecutionObserver-to-Hub.Broadcast adaptation for workflow
// execution events.
type Observer struct {
	hub   *Hub
	runID string
}

// NewObserver returns an Observer broadcasting runID's events through hub.
func NewObserver(hub *Hub, runID string) *Observer {
	return &Observer{hub: hub, runID: runID}
}

var _ monitor.ExecutionObserver = (*Observer)(nil)

func (o *Observer) OnGenerationStart(generation int, producers []core.Handle) {
	o.hub.Broadcast(Event{
		Type: EventGenerationStarted, Timestamp: time.Now(), RunID: o.runID,
		Generation: generation, Producers: len(producers),
	})
}

func (o *Observer) OnGenerationEnd(generation int, elapsed time.Duration) {
	o.hub.Broadcast(Event{
		Type: EventGenerationFinished, Timestamp: time.Now(), RunID: o.runID,
		Generation: generation, DurationMs: elapsed.Milliseconds(),
	})
}

func (o *Observer) OnProducerPrepared(h core.Handle, elapsed time.Duration) {
	o.hub.Broadcast(Event{
		Type: EventProducerPrepared, Timestamp: time.Now(), RunID: o.runID,
		Producer: h.String(), DurationMs: elapsed.Milliseconds(),
	})
}

func (o *Observer) OnMinibatchApplied(h core.Handle, size int, elapsed time.Duration) {
	o.hub.Broadcast(Event{
		Type: EventMinibatchApplied, Timestamp: time.Now(), RunID: o.runID,
		Producer: h.String(), BatchSize: size, DurationMs: elapsed.Milliseconds(),
	})
}

func (o *Observer) OnExecutionFailed(h core.Handle, err error) {
	o.hub.Broadcast(Event{
		Type: EventExecutionFailed, Timestamp: time.Now(), RunID: o.runID,
		Producer: h.String(), Error: err.Error(),
	})
}

func (o *Observer) OnExecutionCancelled(reason string) {
	o.hub.Broadcast(Event{
		Type: EventExecutionCancelled, Timestamp: time.Now(), RunID: o.runID,
		Reason: reason,
	})
}
