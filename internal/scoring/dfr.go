package scoring

import "math"

func log2(x float64) float64 {
	return math.Log2(x)
}

// rec_log2_of_e = 1 / ln(2)
const recLog2OfE = 1.0 / math.Ln2

// DFree is a parameter-free divergence-from-randomness model.
type DFree struct{}

func (DFree) Name() string { return "dfree" }

func (DFree) Scorer(stats TermStats) Scorer {
	cf := stats.CollectionWeight
	if cf <= 0 {
		cf = 1
	}
	dc := float64(stats.TotalDocs)
	if dc <= 0 {
		dc = 1
	}
	return lengthScorer{
		stats: stats,
		score: func(weight float64, length uint32) float64 {
			tf := weight
			if tf <= 0 {
				return 0
			}
			fl := float64(length)
			if fl < 1 {
				fl = 1
			}
			prior := tf / fl
			post := (tf + 1.0) / (fl + 1.0)
			invPriorCol := dc / cf
			invPostCol := dc / (cf + 1.0)
			norm := tf * log2(post/prior)
			score := norm * (tf*log2(prior*invPriorCol) +
				(tf+1.0)*log2(post*invPostCol) +
				0.5*log2(post/prior))
			if score < 0 || math.IsNaN(score) {
				return 0
			}
			return score
		},
	}
}

// PL2 is a divergence-from-randomness model with a single length-smoothing
// parameter c.
type PL2 struct {
	C float64
}

func (PL2) Name() string { return "pl2" }

func (m PL2) Scorer(stats TermStats) Scorer {
	c := stats.C
	if c <= 0 {
		c = m.C
	}
	if c <= 0 {
		c = 1
	}
	cf := stats.CollectionWeight
	if cf <= 0 {
		cf = 1
	}
	dc := float64(stats.TotalDocs)
	if dc <= 0 {
		dc = 1
	}
	avgfl := stats.AvgFieldLength
	if avgfl <= 0 {
		avgfl = 1
	}
	return lengthScorer{
		stats: stats,
		score: func(weight float64, length uint32) float64 {
			if weight <= 0 {
				return 0
			}
			fl := float64(length)
			if fl < 1 {
				fl = 1
			}
			tf := weight * log2(1.0+(c*avgfl)/fl)
			if tf <= 0 {
				return 0
			}
			norm := 1.0 / (tf + 1.0)
			f := cf / dc
			score := norm * (tf*log2(1.0/f) +
				f*recLog2OfE +
				0.5*log2(2*math.Pi*tf) +
				tf*(log2(tf)-recLog2OfE))
			if score < 0 || math.IsNaN(score) {
				return 0
			}
			return score
		},
	}
}
