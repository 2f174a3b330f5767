package prepare_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/objstream"
	"github.com/smilemakc/dagml/internal/prepare"
)

type meanPreparer struct {
	sum, n int
}

func (p *meanPreparer) Process(values []any) error {
	p.sum += values[0].(int)
	p.n++
	return nil
}

func (p *meanPreparer) Finish() error { return nil }

func (p *meanPreparer) ResultTransformer() (*core.PreparedTransformer, error) {
	mean := 0
	if p.n > 0 {
		mean = p.sum / p.n
	}
	return core.NewPreparedTransformer("mean", false, func(in []any) any { return mean }), nil
}

func (p *meanPreparer) IsIdempotent() bool { return true }

type sumBatchPreparer struct {
	total int
}

func (p *sumBatchPreparer) Finish(reader objstream.Reader) error {
	for {
		row, ok := reader.Next()
		if !ok {
			break
		}
		p.total += row[0].(int)
	}
	return nil
}

func (p *sumBatchPreparer) ResultTransformer() (*core.PreparedTransformer, error) {
	total := p.total
	return core.NewPreparedTransformer("sum", false, func(in []any) any { return total }), nil
}

func TestDriveStreamComputesMean(t *testing.T) {
	p := &meanPreparer{}
	d := prepare.NewDriver()
	rt, err := d.DriveStream(p, [][]any{{2}, {4}, {6}})
	require.NoError(t, err)
	require.Equal(t, 4, rt.Apply(nil))
	require.Equal(t, prepare.Finished, d.State())
}

func TestDriveBatchSumsReader(t *testing.T) {
	w := objstream.NewWriter(-1)
	require.NoError(t, w.Write([]any{1}))
	require.NoError(t, w.Write([]any{2}))
	require.NoError(t, w.Write([]any{3}))
	reader, err := w.Reader()
	require.NoError(t, err)
	defer reader.Close()

	p := &sumBatchPreparer{}
	d := prepare.NewDriver()
	rt, err := d.DriveBatch(p, reader)
	require.NoError(t, err)
	require.Equal(t, 6, rt.Apply(nil))
}

func TestShouldGatherConservativeDefault(t *testing.T) {
	require.True(t, prepare.ShouldGather(&sumBatchPreparer{}, true), "preparer without Idempotent must always gather")
	require.True(t, prepare.ShouldGather(&meanPreparer{}, false), "non-constant parents must always gather")
	require.False(t, prepare.ShouldGather(&meanPreparer{}, true), "idempotent preparer over constant parents may skip gathering")
}

func TestDriveStreamRejectsDoubleFinish(t *testing.T) {
	p := &meanPreparer{}
	d := prepare.NewDriver()
	_, err := d.DriveStream(p, nil)
	require.NoError(t, err)
	_, err = d.DriveStream(p, nil)
	require.Error(t, err)
}
