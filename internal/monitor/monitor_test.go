package monitor_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/monitor"
)

type recordingObserver struct {
	generations []int
	failures    []core.Handle
}

func (r *recordingObserver) OnGenerationStart(generation int, _ []core.Handle) {
	r.generations = append(r.generations, generation)
}
func (r *recordingObserver) OnGenerationEnd(int, time.Duration)            {}
func (r *recordingObserver) OnProducerPrepared(core.Handle, time.Duration) {}
func (r *recordingObserver) OnMinibatchApplied(core.Handle, int, time.Duration) {
}
func (r *recordingObserver) OnExecutionFailed(h core.Handle, _ error) {
	r.failures = append(r.failures, h)
}
func (r *recordingObserver) OnExecutionCancelled(string) {}

func TestObserverManagerFansOut(t *testing.T) {
	mgr := monitor.NewObserverManager()
	a := &recordingObserver{}
	b := &recordingObserver{}
	mgr.Register(a)
	mgr.Register(b)

	mgr.OnGenerationStart(0, nil)
	mgr.OnGenerationStart(1, nil)

	require.Equal(t, []int{0, 1}, a.generations)
	require.Equal(t, []int{0, 1}, b.generations)
}

func TestCollectorRecordsApplyAndFailure(t *testing.T) {
	c := monitor.NewCollector()
	h := core.NewHandle("prepared:test")
	c.RecordApply(h, 5*time.Millisecond, nil)
	c.RecordApply(h, 5*time.Millisecond, nil)
	c.RecordApply(h, time.Millisecond, errBoom)

	run := c.Finish()
	pm := run.Producers[h.String()]
	require.NotNil(t, pm)
	require.Equal(t, 3, pm.ApplyCount)
	require.Equal(t, 1, pm.FailureCount)
}

var errBoom = errBoomType{}

type errBoomType struct{}

func (errBoomType) Error() string { return "boom" }

func TestSaveAndLoadMetricsRoundTrip(t *testing.T) {
	c := monitor.NewCollector()
	h := core.NewHandle("prepared:test")
	c.RecordApply(h, time.Millisecond, nil)
	run := c.Finish()

	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, monitor.SaveToFile(path, run))

	loaded, err := monitor.LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, loaded.Producers, 1)

	_, err = monitor.LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	_ = os.Remove(path)
}
