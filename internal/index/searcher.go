package index

import (
	"container/heap"
	"context"
	"log/slog"
	"time"

	"github.com/quillsearch/quill/internal/matching"
	"github.com/quillsearch/quill/internal/postform"
	"github.com/quillsearch/quill/internal/query"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/internal/scoring"
	"github.com/quillsearch/quill/internal/segment"
	"github.com/quillsearch/quill/pkg/errors"
	"github.com/quillsearch/quill/pkg/resilience"
)

// Hit is one search result.
type Hit struct {
	Segment string            `json:"segment"`
	Doc     uint32            `json:"doc"`
	Score   float64           `json:"score"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Results is a ranked page of hits.
type Results struct {
	Hits    []Hit         `json:"hits"`
	Matched uint64        `json:"matched"`
	Elapsed time.Duration `json:"elapsed"`
}

// Searcher executes query trees against a snapshot-consistent view of the
// index. Searchers are cheap; open one per request.
type Searcher struct {
	ix     *Index
	cache  *Cache
	logger *slog.Logger
}

// Searcher opens a searcher. cache may be nil.
func (ix *Index) Searcher(cache *Cache) *Searcher {
	return &Searcher{
		ix:     ix,
		cache:  cache,
		logger: slog.Default().With("component", "searcher"),
	}
}

// Search ranks the top documents matching q. limit <= 0 uses the configured
// default.
func (s *Searcher) Search(ctx context.Context, q query.Query, limit int) (*Results, error) {
	cfg := s.ix.cfg.Search
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}
	if cfg.MaxResults > 0 && limit > cfg.MaxResults {
		limit = cfg.MaxResults
	}
	q = q.Normalize()

	if s.cache != nil {
		return s.cache.do(ctx, s.ix.Generation(), q, limit, func() (*Results, error) {
			return s.timedSearch(ctx, q, limit)
		})
	}
	return s.timedSearch(ctx, q, limit)
}

func (s *Searcher) timedSearch(ctx context.Context, q query.Query, limit int) (*Results, error) {
	start := time.Now()
	var res *Results
	err := resilience.WithTimeout(ctx, s.ix.cfg.Search.Timeout, "search", func(ctx context.Context) error {
		var err error
		res, err = s.run(ctx, q, limit)
		return err
	})
	elapsed := time.Since(start)
	if s.ix.metrics != nil {
		s.ix.metrics.SearchLatency.WithLabelValues("miss").Observe(elapsed.Seconds())
		switch {
		case err != nil:
			s.ix.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		case len(res.Hits) == 0:
			s.ix.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		default:
			s.ix.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
		}
	}
	if err != nil {
		return nil, err
	}
	res.Elapsed = elapsed
	return res, nil
}

func (s *Searcher) run(ctx context.Context, q query.Query, limit int) (*Results, error) {
	views := s.ix.Snapshot()
	stats := newCollectionStats(s.ix, views)
	top := &topK{limit: limit}
	heap.Init(top)
	var matched uint64

	for _, view := range views {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sc := &segmentContext{ix: s.ix, view: view, stats: stats}
		m, err := q.Matcher(sc)
		if err != nil {
			return nil, err
		}
		if view.Deleted != nil {
			m = matching.NewExcludeMatcher(m, view.Deleted)
		}
		matched += s.collect(m, view.Reader.Name(), top)
	}

	hits := make([]Hit, top.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(top).(Hit)
	}
	s.resolveStored(views, hits)
	return &Results{Hits: hits, Matched: matched}, nil
}

// collect drains a segment matcher into the shared top-k heap, skipping
// posting blocks that cannot beat the current floor when quality pruning is
// enabled.
func (s *Searcher) collect(m matching.Matcher, segName string, top *topK) uint64 {
	useQuality := s.ix.cfg.Search.UseQualitySkips && m.SupportsQuality()
	var matched uint64
	for m.IsActive() {
		if useQuality && top.Len() >= top.limit {
			floor := top.floor()
			if m.BlockQuality() <= floor {
				if s.ix.metrics != nil {
					s.ix.metrics.QualitySkipsTotal.Inc()
				}
				if !m.SkipToQuality(floor) {
					break
				}
				continue
			}
		}
		matched++
		top.offer(Hit{Segment: segName, Doc: m.ID(), Score: m.Score()})
		m.Next()
	}
	return matched
}

func (s *Searcher) resolveStored(views []SegmentView, hits []Hit) {
	byName := make(map[string]*segment.Reader, len(views))
	for _, v := range views {
		byName[v.Reader.Name()] = v.Reader
	}
	for i := range hits {
		r, ok := byName[hits[i].Segment]
		if !ok {
			continue
		}
		stored, err := r.StoredFields(hits[i].Doc)
		if err == nil && len(stored) > 0 {
			hits[i].Fields = stored
		}
	}
}

// topK is a bounded min-heap: the root is the lowest-scoring retained hit, so
// a new hit only enters once it beats the floor.
type topK struct {
	hits  []Hit
	limit int
}

func (t *topK) Len() int { return len(t.hits) }

func (t *topK) Less(i, j int) bool {
	if t.hits[i].Score != t.hits[j].Score {
		return t.hits[i].Score < t.hits[j].Score
	}
	if t.hits[i].Segment != t.hits[j].Segment {
		return t.hits[i].Segment > t.hits[j].Segment
	}
	return t.hits[i].Doc > t.hits[j].Doc
}

func (t *topK) Swap(i, j int) { t.hits[i], t.hits[j] = t.hits[j], t.hits[i] }

func (t *topK) Push(x any) { t.hits = append(t.hits, x.(Hit)) }

func (t *topK) Pop() any {
	old := t.hits
	n := len(old)
	item := old[n-1]
	t.hits = old[:n-1]
	return item
}

func (t *topK) floor() float64 {
	if len(t.hits) == 0 {
		return 0
	}
	return t.hits[0].Score
}

func (t *topK) offer(h Hit) {
	if t.Len() < t.limit {
		heap.Push(t, h)
		return
	}
	if h.Score > t.floor() {
		t.hits[0] = h
		heap.Fix(t, 0)
	}
}

// collectionStats aggregates term statistics across every segment in a
// snapshot so scores are comparable between segments.
type collectionStats struct {
	ix        *Index
	views     []SegmentView
	totalDocs int64
	avgLen    map[string]float64
	cache     map[string]scoring.TermStats
}

func newCollectionStats(ix *Index, views []SegmentView) *collectionStats {
	c := &collectionStats{
		ix:     ix,
		views:  views,
		avgLen: make(map[string]float64),
		cache:  make(map[string]scoring.TermStats),
	}
	lenTotals := make(map[string]uint64)
	for _, v := range views {
		deleted := 0
		if v.Deleted != nil {
			deleted = v.Deleted.Len()
		}
		c.totalDocs += int64(v.Reader.DocCount()) - int64(deleted)
		for _, f := range v.Reader.FieldNames() {
			lenTotals[f] += v.Reader.FieldLengthTotal(f)
		}
	}
	if c.totalDocs > 0 {
		for f, total := range lenTotals {
			c.avgLen[f] = float64(total) / float64(c.totalDocs)
		}
	}
	return c
}

func (c *collectionStats) stats(field, term string) scoring.TermStats {
	key := field + "\x00" + term
	if st, ok := c.cache[key]; ok {
		return st
	}
	st := scoring.TermStats{
		TotalDocs:      c.totalDocs,
		AvgFieldLength: c.avgLen[field],
		MinLength:      ^uint32(0),
	}
	for _, v := range c.views {
		ti, err := v.Reader.TermInfo(field, term)
		if err != nil {
			continue
		}
		st.DocFreq += int64(ti.DocFreq)
		st.CollectionWeight += ti.TotalWeight
		if ti.MaxWeight > st.MaxWeight {
			st.MaxWeight = ti.MaxWeight
		}
		if ti.MinLength < st.MinLength {
			st.MinLength = ti.MinLength
		}
	}
	if st.MinLength == ^uint32(0) {
		st.MinLength = 0
	}
	st.B, st.K1, st.C = c.resolveParams(field)
	c.cache[key] = st
	return st
}

// resolveParams layers scoring parameters: schema field overrides, then
// per-field configuration, then the global values.
func (c *collectionStats) resolveParams(field string) (b, k1, cc float64) {
	cfg := c.ix.cfg.Scoring
	b, k1, cc = cfg.B, cfg.K1, cfg.C
	if v, ok := cfg.PerFieldB[field]; ok {
		b = v
	}
	if v, ok := cfg.PerFieldK1[field]; ok {
		k1 = v
	}
	if f, err := c.ix.sch.Field(field); err == nil {
		if f.Scoring.B != nil {
			b = *f.Scoring.B
		}
		if f.Scoring.K1 != nil {
			k1 = *f.Scoring.K1
		}
	}
	return b, k1, cc
}

// segmentContext adapts one segment view to the query compiler.
type segmentContext struct {
	ix    *Index
	view  SegmentView
	stats *collectionStats
}

func (sc *segmentContext) Schema() *schema.Schema { return sc.ix.sch }

func (sc *segmentContext) lengthFn(field string) func(uint32) uint32 {
	r := sc.view.Reader
	return func(doc uint32) uint32 { return r.FieldLength(field, doc) }
}

func (sc *segmentContext) TermMatcher(field, term string) (matching.Matcher, error) {
	cursor, err := sc.view.Reader.Cursor(field, term)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return matching.NullMatcher{}, nil
		}
		return nil, err
	}
	scorer := sc.ix.model.Scorer(sc.stats.stats(field, term))
	return matching.NewTermMatcher(cursor, scorer, sc.lengthFn(field)), nil
}

func (sc *segmentContext) WordMatcher(field, term string) (matching.ValueMatcher, error) {
	cursor, err := sc.view.Reader.Cursor(field, term)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return matching.NewListMatcher(nil, nil, nil), nil
		}
		return nil, err
	}
	scorer := sc.ix.model.Scorer(sc.stats.stats(field, term))
	return matching.NewTermMatcher(cursor, scorer, sc.lengthFn(field)), nil
}

func (sc *segmentContext) Positions(field string) (matching.PositionsFunc, error) {
	f, err := sc.ix.sch.Field(field)
	if err != nil {
		return nil, err
	}
	if !f.Format.Supports(postform.CapPositions) {
		return nil, errors.Newf(errors.ErrCapability, "field %q does not record positions", field)
	}
	format := f.Format
	return func(value []byte) []int { return format.DecodePositions(value) }, nil
}

func (sc *segmentContext) FieldTerms(field string) ([]string, error) {
	entries := sc.view.Reader.TermsInField(field)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Term
	}
	return out, nil
}

func (sc *segmentContext) AllMatcher() (matching.Matcher, error) {
	n := sc.view.Reader.DocCount()
	postings := make([]segment.Posting, n)
	for i := uint32(0); i < n; i++ {
		postings[i] = segment.Posting{Doc: i, Weight: 1}
	}
	return matching.NewListMatcher(postings, nil, nil), nil
}

var _ query.Context = (*segmentContext)(nil)
