package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/pkg/config"
)

func bm25Stats() TermStats {
	return TermStats{
		TotalDocs:      100,
		DocFreq:        10,
		AvgFieldLength: 10,
		MaxWeight:      2,
		MinLength:      10,
		B:              0.75,
		K1:             1.2,
	}
}

func TestBM25FClosedForm(t *testing.T) {
	s := BM25F{}.Scorer(bm25Stats())

	wantIDF := math.Log(1 + (100.0-10.0+0.5)/(10.0+0.5))
	// tf=2, fl=avgfl: the length norm collapses to 1.
	want := wantIDF * (2 * (1.2 + 1)) / (2 + 1.2)
	assert.InDelta(t, want, s.Score(2, 10), 1e-12)
}

func TestBM25FLengthNormalization(t *testing.T) {
	s := BM25F{}.Scorer(bm25Stats())
	short := s.Score(2, 5)
	long := s.Score(2, 40)
	assert.Greater(t, short, long)
}

func TestBM25FSaturates(t *testing.T) {
	s := BM25F{}.Scorer(bm25Stats())
	assert.Greater(t, s.Score(4, 10), s.Score(2, 10))
	// Doubling tf less than doubles the score.
	assert.Less(t, s.Score(4, 10), 2*s.Score(2, 10))
}

func TestBM25FZeroWeight(t *testing.T) {
	s := BM25F{}.Scorer(bm25Stats())
	assert.Equal(t, 0.0, s.Score(0, 10))
}

func TestBM25FModelDefaults(t *testing.T) {
	stats := bm25Stats()
	stats.B, stats.K1 = 0, 0
	withDefaults := BM25F{B: 0.75, K1: 1.2}.Scorer(stats)
	explicit := BM25F{}.Scorer(bm25Stats())
	assert.InDelta(t, explicit.Score(3, 12), withDefaults.Score(3, 12), 1e-12)
}

func TestDFree(t *testing.T) {
	s := DFree{}.Scorer(TermStats{
		TotalDocs:        1000,
		DocFreq:          50,
		CollectionWeight: 120,
		MaxWeight:        4,
		MinLength:        5,
	})
	assert.Equal(t, 0.0, s.Score(0, 10))
	assert.GreaterOrEqual(t, s.Score(1, 10), 0.0)
	assert.GreaterOrEqual(t, s.Score(4, 10), 0.0)
	assert.False(t, math.IsNaN(s.Score(3, 1)))

	// More occurrences in the same length outrank fewer.
	assert.Greater(t, s.Score(4, 20), s.Score(1, 20))
}

func TestPL2(t *testing.T) {
	s := PL2{C: 1}.Scorer(TermStats{
		TotalDocs:        1000,
		DocFreq:          50,
		CollectionWeight: 120,
		AvgFieldLength:   15,
		MaxWeight:        4,
		MinLength:        5,
	})
	assert.Equal(t, 0.0, s.Score(0, 10))
	assert.GreaterOrEqual(t, s.Score(2, 10), 0.0)
	assert.Greater(t, s.Score(4, 15), s.Score(1, 15))
	assert.False(t, math.IsNaN(s.Score(1, 1)))
}

func TestPL2ParameterFallback(t *testing.T) {
	stats := TermStats{TotalDocs: 10, DocFreq: 2, CollectionWeight: 5, AvgFieldLength: 8, MaxWeight: 2, MinLength: 4}
	fromModel := PL2{C: 2}.Scorer(stats)
	stats.C = 2
	fromStats := PL2{C: 9}.Scorer(stats)
	assert.InDelta(t, fromStats.Score(2, 8), fromModel.Score(2, 8), 1e-12)
}

func TestTFIDF(t *testing.T) {
	stats := TermStats{TotalDocs: 100, DocFreq: 10, MaxWeight: 3}
	s := TFIDF{}.Scorer(stats)
	wantIDF := math.Log(1 + (100.0-10.0+0.5)/(10.0+0.5))
	assert.InDelta(t, 2*wantIDF, s.Score(2, 7), 1e-12)
	assert.InDelta(t, 3*wantIDF, s.MaxQuality(), 1e-12)
	assert.InDelta(t, wantIDF, s.BlockQuality(1), 1e-12)
}

func TestFrequency(t *testing.T) {
	s := Frequency{}.Scorer(TermStats{MaxWeight: 5})
	assert.Equal(t, 2.5, s.Score(2.5, 99))
	assert.Equal(t, 5.0, s.MaxQuality())
}

// Quality bounds may overestimate but must never underestimate any achievable
// score.
func TestQualityBoundsAreSound(t *testing.T) {
	stats := TermStats{
		TotalDocs:        500,
		DocFreq:          40,
		CollectionWeight: 90,
		AvgFieldLength:   12,
		MaxWeight:        6,
		MinLength:        3,
		B:                0.75,
		K1:               1.2,
		C:                1,
	}
	models := map[string]WeightingModel{
		"bm25f":     BM25F{B: 0.75, K1: 1.2},
		"tfidf":     TFIDF{},
		"frequency": Frequency{},
	}
	for name, model := range models {
		t.Run(name, func(t *testing.T) {
			s := model.Scorer(stats)
			require.True(t, s.SupportsQuality())
			for weight := 1.0; weight <= stats.MaxWeight; weight++ {
				for _, length := range []uint32{3, 5, 12, 40} {
					score := s.Score(weight, length)
					assert.GreaterOrEqual(t, s.MaxQuality(), score,
						"weight=%v length=%d", weight, length)
					assert.GreaterOrEqual(t, s.BlockQuality(weight), score,
						"weight=%v length=%d", weight, length)
				}
			}
		})
	}
}

// The divergence models' scores are not monotone in field length, so no block
// bound derived from (max weight, min length) is sound and they opt out of
// quality skipping.
func TestDivergenceModelsDeclineQuality(t *testing.T) {
	stats := TermStats{TotalDocs: 500, DocFreq: 40, CollectionWeight: 90, AvgFieldLength: 12, MaxWeight: 4, MinLength: 5}
	assert.False(t, DFree{}.Scorer(stats).SupportsQuality())
	assert.False(t, PL2{C: 1}.Scorer(stats).SupportsQuality())
}

func TestNewResolvesModels(t *testing.T) {
	for name, want := range map[string]string{
		"":          "bm25f",
		"bm25f":     "bm25f",
		"dfree":     "dfree",
		"pl2":       "pl2",
		"tfidf":     "tfidf",
		"frequency": "frequency",
	} {
		m, err := New(config.ScoringConfig{Model: name, B: 0.75, K1: 1.2, C: 1})
		require.NoError(t, err)
		assert.Equal(t, want, m.Name())
	}

	_, err := New(config.ScoringConfig{Model: "pagerank"})
	assert.Error(t, err)
}
