package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/smilemakc/dagml/internal/core"
)

// ProducerMetrics aggregates timing/count data for one producer across a
// run.
type ProducerMetrics struct {
	Handle        string        `json:"handle"`
	ApplyCount    int           `json:"apply_count"`
	TotalDuration time.Duration `json:"total_duration"`
	FailureCount  int           `json:"failure_count"`
}

// RunMetrics aggregates a whole run's ProducerMetrics.
type RunMetrics struct {
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Producers  map[string]*ProducerMetrics `json:"producers"`
}

// Collector accumulates RunMetrics under a mutex as the executor's worker
// pool reports producer applications concurrently.
type Collector struct {
	mu  sync.Mutex
	run RunMetrics
}

// NewCollector returns a Collector with its run start time set to now.
func NewCollector() *Collector {
	return &Collector{run: RunMetrics{StartedAt: time.Now(), Producers: make(map[string]*ProducerMetrics)}}
}

// RecordApply records one minibatch application for h.
func (c *Collector) RecordApply(h core.Handle, elapsed time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := h.String()
	pm, ok := c.run.Producers[key]
	if !ok {
		pm = &ProducerMetrics{Handle: key}
		c.run.Producers[key] = pm
	}
	pm.ApplyCount++
	pm.TotalDuration += elapsed
	if err != nil {
		pm.FailureCount++
	}
}

// Finish stamps the run's end time and returns a snapshot copy.
func (c *Collector) Finish() RunMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run.FinishedAt = time.Now()
	return c.run
}

// SaveToFile persists m as pretty-printed JSON with 0644 permissions.
func SaveToFile(path string, m RunMetrics) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("dagml/monitor: marshaling metrics: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("dagml/monitor: writing metrics file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile reads metrics previously written by SaveToFile.
func LoadFromFile(path string) (RunMetrics, error) {
	var m RunMetrics
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("dagml/monitor: reading metrics file %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("dagml/monitor: unmarshaling metrics file %s: %w", path, err)
	}
	return m, nil
}

// asObserver adapts a Collector to ExecutionObserver so it can register
// directly with an ObserverManager.
type asObserver struct{ c *Collector }

// AsObserver wraps c as an ExecutionObserver.
func (c *Collector) AsObserver() ExecutionObserver { return asObserver{c: c} }

func (a asObserver) OnGenerationStart(int, []core.Handle)       {}
func (a asObserver) OnGenerationEnd(int, time.Duration)         {}
func (a asObserver) OnProducerPrepared(core.Handle, time.Duration) {}
func (a asObserver) OnMinibatchApplied(h core.Handle, size int, elapsed time.Duration) {
	a.c.RecordApply(h, elapsed, nil)
}
func (a asObserver) OnExecutionFailed(h core.Handle, err error) { a.c.RecordApply(h, 0, err) }
func (a asObserver) OnExecutionCancelled(string)                {}
