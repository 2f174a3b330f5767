// Package prepbuiltin collects ready-to-use PreparableTransformer
// constructors over internal/prepare's STREAM/BATCH driver contract: small
// generic constructors wrapping a stateful fitting strategy behind one
// Producer-shaped entry point.
package prepbuiltin

import (
	"math"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/objstream"
)

// standardScaler is a StreamPreparer that computes a feature's mean and
// population standard deviation over the preparation examples, then
// rescales every applied value to zero mean / unit variance.
type standardScaler struct {
	sum, sumSq float64
	n          int
}

// NewStandardScaler returns a PreparableTransformer over input that
// normalizes to zero mean and unit variance, fit via one STREAM pass over
// the preparation data.
func NewStandardScaler(name string, input core.TypedInput[float64]) *core.PreparableTransformer {
	return core.NewPreparableTransformer(name, func() core.Preparer {
		return &standardScaler{}
	}, input.Producer())
}

func (s *standardScaler) Process(values []any) error {
	v := values[0].(float64)
	s.sum += v
	s.sumSq += v * v
	s.n++
	return nil
}

func (s *standardScaler) Finish() error { return nil }

func (s *standardScaler) ResultTransformer() (*core.PreparedTransformer, error) {
	mean, std := 0.0, 1.0
	if s.n > 0 {
		mean = s.sum / float64(s.n)
		variance := s.sumSq/float64(s.n) - mean*mean
		if variance > 0 {
			std = math.Sqrt(variance)
		}
	}
	return core.NewPreparedTransformer("standard_scale", false, func(in []any) any {
		return (in[0].(float64) - mean) / std
	}), nil
}

// topKVocabulary is a BatchPreparer that builds a fixed token-to-index
// vocabulary from the K most frequent values seen across the full
// preparation reader, then maps applied values to their index (or -1 for
// out-of-vocabulary values). It needs the whole preparation set in hand
// before it can rank by frequency, so it takes the reader directly in
// Finish rather than accumulating counts example-by-example through
// Process.
type topKVocabulary struct {
	k      int
	counts map[string]int
}

// NewTopKVocabulary returns a PreparableTransformer over input that maps
// string values to their rank among the k most frequent values in the
// preparation data, fit via one BATCH pass (the full reader is needed to
// rank by frequency before any index can be assigned).
func NewTopKVocabulary(name string, k int, input core.TypedInput[string]) *core.PreparableTransformer {
	return core.NewPreparableTransformer(name, func() core.Preparer {
		return &topKVocabulary{k: k}
	}, input.Producer())
}

func (v *topKVocabulary) Finish(reader objstream.Reader) error {
	counts := make(map[string]int)
	for {
		values, ok := reader.Next()
		if !ok {
			break
		}
		counts[values[0].(string)]++
	}
	v.counts = counts
	return nil
}

func (v *topKVocabulary) ResultTransformer() (*core.PreparedTransformer, error) {
	type kv struct {
		token string
		count int
	}
	ranked := make([]kv, 0, len(v.counts))
	for token, count := range v.counts {
		ranked = append(ranked, kv{token, count})
	}
	for i := 1; i < len(ranked); i++ {
		j := i
		for j > 0 && ranked[j-1].count < ranked[j].count {
			ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
			j--
		}
	}
	if v.k < len(ranked) {
		ranked = ranked[:v.k]
	}
	index := make(map[string]int, len(ranked))
	for i, e := range ranked {
		index[e.token] = i
	}
	return core.NewPreparedTransformer("vocabulary_index", false, func(in []any) any {
		if idx, ok := index[in[0].(string)]; ok {
			return idx
		}
		return -1
	}), nil
}
