package objstream_test

import (
	"testing"

	"github.com/smilemakc/dagml/internal/objstream"
	"github.com/stretchr/testify/require"
)

func TestWriterInMemoryRoundTrip(t *testing.T) {
	w := objstream.NewWriter(-1) // negative threshold disables spilling
	require.NoError(t, w.Write([]any{1, "a"}))
	require.NoError(t, w.Write([]any{2, "b"}))

	r, err := w.Reader()
	require.NoError(t, err)
	defer r.Close()

	size, known := r.SizeIfKnown()
	require.True(t, known)
	require.Equal(t, 2, size)

	v, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, []any{1, "a"}, v)

	v, ok = r.Next()
	require.True(t, ok)
	require.Equal(t, []any{2, "b"}, v)

	_, ok = r.Next()
	require.False(t, ok)

	require.NoError(t, r.Rewind())
	v, ok = r.Next()
	require.True(t, ok)
	require.Equal(t, []any{1, "a"}, v)
}

func TestWriterSpillsToDiskAboveThreshold(t *testing.T) {
	w := objstream.NewWriter(1) // tiny threshold forces an immediate spill
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Write([]any{i}))
	}

	r, err := w.Reader()
	require.NoError(t, err)

	size, known := r.SizeIfKnown()
	require.True(t, known)
	require.Equal(t, 5, size)

	var got []int
	for {
		v, ok := r.Next()
		if !ok {
			break
		}
		got = append(got, v[0].(int))
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
	require.NoError(t, r.Close())
}

func TestSliceBoundsChecking(t *testing.T) {
	w := objstream.NewWriter(-1)
	require.NoError(t, w.Write([]any{1}))
	r, err := w.Reader()
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Slice(0, 5)
	require.Error(t, err)

	sub, err := r.Slice(0, 1)
	require.NoError(t, err)
	v, ok := sub.Next()
	require.True(t, ok)
	require.Equal(t, []any{1}, v)
}
