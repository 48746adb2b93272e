package scoring

// TFIDF scores weight * idf with no length normalization.
type TFIDF struct{}

func (TFIDF) Name() string { return "tfidf" }

func (TFIDF) Scorer(stats TermStats) Scorer {
	return weightScorer{factor: idf(stats.TotalDocs, stats.DocFreq), stats: stats}
}

// Frequency scores the raw stored weight.
type Frequency struct{}

func (Frequency) Name() string { return "frequency" }

func (Frequency) Scorer(stats TermStats) Scorer {
	return weightScorer{factor: 1, stats: stats}
}

// weightScorer scales the posting weight by a constant factor; quality bounds
// come straight from the term's maximum weight.
type weightScorer struct {
	factor float64
	stats  TermStats
}

func (s weightScorer) Score(weight float64, _ uint32) float64 {
	return weight * s.factor
}

func (s weightScorer) SupportsQuality() bool { return true }

func (s weightScorer) MaxQuality() float64 {
	return s.stats.MaxWeight * s.factor
}

func (s weightScorer) BlockQuality(blockMaxWeight float64) float64 {
	return blockMaxWeight * s.factor
}
