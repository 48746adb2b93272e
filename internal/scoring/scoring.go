// Package scoring implements the pluggable weighting models: BM25F, the
// DFree and PL2 divergence-from-randomness models, TF-IDF, and raw frequency.
//
// A WeightingModel holds global configuration; a Scorer is instantiated per
// (field, term) with precomputed statistics so scoring a matcher's current
// document is cheap. MaxQuality and BlockQuality are upper bounds consumed by
// the matching layer's early termination; they may overestimate but must
// never underestimate an achievable score.
package scoring

import (
	"fmt"
	"math"

	"github.com/quillsearch/quill/pkg/config"
)

// TermStats carries everything a scorer precomputes from: collection-wide
// counts, per-term statistics, and resolved per-field parameters.
type TermStats struct {
	// TotalDocs is the document count across all live segments.
	TotalDocs int64
	// DocFreq is the number of documents containing the term.
	DocFreq int64
	// CollectionWeight is the total weight of the term across the collection.
	CollectionWeight float64
	// AvgFieldLength is the mean length of the field across the collection.
	AvgFieldLength float64
	// MaxWeight is the term's highest single-document weight.
	MaxWeight float64
	// MinLength is the shortest field length among documents with the term.
	MinLength uint32

	B  float64
	K1 float64
	C  float64
}

// Scorer scores a single term's postings. Weight is the posting's stored
// weight (term frequency or summed boost); length is the field's stored
// length in the document.
type Scorer interface {
	Score(weight float64, length uint32) float64
	// SupportsQuality reports whether the quality bounds below are sound for
	// this model. Models whose score is not monotone in field length cannot
	// bound a block from its header statistics.
	SupportsQuality() bool
	// MaxQuality bounds every score this scorer can produce.
	MaxQuality() float64
	// BlockQuality bounds the scores achievable within a posting block whose
	// maximum weight is blockMaxWeight.
	BlockQuality(blockMaxWeight float64) float64
}

// WeightingModel builds scorers from term statistics.
type WeightingModel interface {
	Name() string
	Scorer(stats TermStats) Scorer
}

// New resolves a model by configuration name.
func New(cfg config.ScoringConfig) (WeightingModel, error) {
	switch cfg.Model {
	case "", "bm25f":
		return BM25F{B: cfg.B, K1: cfg.K1}, nil
	case "dfree":
		return DFree{}, nil
	case "pl2":
		return PL2{C: cfg.C}, nil
	case "tfidf":
		return TFIDF{}, nil
	case "frequency":
		return Frequency{}, nil
	}
	return nil, fmt.Errorf("unknown weighting model %q", cfg.Model)
}

// idf is the smoothed inverse document frequency shared by BM25F and TF-IDF.
func idf(totalDocs, docFreq int64) float64 {
	return math.Log(1 + (float64(totalDocs)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
}

// lengthScorer is the shared shape of models whose score depends on (weight,
// length): the quality bounds are the score at the term's maximum weight and
// minimum observed field length. That bound is only sound when the score
// decreases with length, which the divergence models do not guarantee.
type lengthScorer struct {
	stats   TermStats
	score   func(weight float64, length uint32) float64
	quality bool
}

func (s lengthScorer) Score(weight float64, length uint32) float64 {
	return s.score(weight, length)
}

func (s lengthScorer) SupportsQuality() bool { return s.quality }

func (s lengthScorer) MaxQuality() float64 {
	return s.score(s.stats.MaxWeight, s.stats.MinLength)
}

func (s lengthScorer) BlockQuality(blockMaxWeight float64) float64 {
	return s.score(blockMaxWeight, s.stats.MinLength)
}
