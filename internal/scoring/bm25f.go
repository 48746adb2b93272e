package scoring

// BM25F scores with the Okapi BM25 formula using per-field length
// normalization. B controls normalization strength in [0,1]; K1 controls
// term-frequency saturation. Both are global defaults overridable per field
// through TermStats.
type BM25F struct {
	B  float64
	K1 float64
}

func (BM25F) Name() string { return "bm25f" }

func (m BM25F) Scorer(stats TermStats) Scorer {
	b, k1 := stats.B, stats.K1
	if b == 0 && k1 == 0 {
		b, k1 = m.B, m.K1
	}
	termIDF := idf(stats.TotalDocs, stats.DocFreq)
	avgfl := stats.AvgFieldLength
	if avgfl <= 0 {
		avgfl = 1
	}
	return lengthScorer{
		stats:   stats,
		quality: true,
		score: func(weight float64, length uint32) float64 {
			if weight <= 0 {
				return 0
			}
			norm := (1 - b) + b*(float64(length)/avgfl)
			return termIDF * (weight * (k1 + 1)) / (weight + k1*norm)
		},
	}
}
