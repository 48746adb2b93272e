// Package index ties the engine together: it owns the index directory, its
// table of contents and segment readers, runs the indexing writer and the
// searcher, applies deletions through the document catalog, and merges
// segments when too many accumulate.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/quillsearch/quill/internal/idset"
	"github.com/quillsearch/quill/internal/scoring"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/internal/segment"
	"github.com/quillsearch/quill/internal/storage"
	"github.com/quillsearch/quill/pkg/config"
	"github.com/quillsearch/quill/pkg/errors"
	"github.com/quillsearch/quill/pkg/metrics"
)

const catalogFileName = "catalog.db"

// Index is an open index directory. Safe for concurrent use; one process
// should own a directory at a time.
type Index struct {
	cfg     *config.Config
	sch     *schema.Schema
	model   scoring.WeightingModel
	metrics *metrics.Metrics
	logger  *slog.Logger
	catalog *storage.DocStore

	mu      sync.RWMutex
	toc     *tableOfContents
	readers map[string]*segment.Reader
	closed  bool
}

// Open opens or creates an index directory. m may be nil to run without
// metrics.
func Open(cfg *config.Config, sch *schema.Schema, m *metrics.Metrics) (*Index, error) {
	if err := os.MkdirAll(cfg.Index.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	model, err := scoring.New(cfg.Scoring)
	if err != nil {
		return nil, err
	}
	toc, err := loadTOC(cfg.Index.Dir)
	if err != nil {
		return nil, err
	}
	catalog, err := storage.OpenDocStore(filepath.Join(cfg.Index.Dir, catalogFileName))
	if err != nil {
		return nil, err
	}
	ix := &Index{
		cfg:     cfg,
		sch:     sch,
		model:   model,
		metrics: m,
		logger:  slog.Default().With("component", "index"),
		catalog: catalog,
		toc:     toc,
		readers: make(map[string]*segment.Reader),
	}
	for _, seg := range toc.Segments {
		if err := ix.openReader(seg.Name); err != nil {
			ix.Close()
			return nil, err
		}
	}
	ix.observeSegments()
	ix.logger.Info("index opened",
		"dir", cfg.Index.Dir,
		"segments", len(toc.Segments),
		"docs", toc.liveDocs(),
	)
	return ix, nil
}

func (ix *Index) openReader(name string) error {
	r, err := segment.OpenReader(name, filepath.Join(ix.cfg.Index.Dir, name))
	if err != nil {
		return fmt.Errorf("opening segment %s: %w", name, err)
	}
	ix.readers[name] = r
	return nil
}

func (ix *Index) observeSegments() {
	if ix.metrics != nil {
		ix.metrics.ActiveSegments.Set(float64(len(ix.toc.Segments)))
	}
}

func (ix *Index) Schema() *schema.Schema { return ix.sch }

// DocCount returns the number of live (non-deleted) documents.
func (ix *Index) DocCount() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.toc.liveDocs()
}

// Generation returns the current table-of-contents generation; it changes on
// every commit, deletion and merge.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.toc.Generation
}

// SegmentView is one segment with its deletion set as of a snapshot.
type SegmentView struct {
	Reader  *segment.Reader
	Deleted idset.Set // nil when the segment has no deletions
}

// Snapshot returns a stable view of the live segments. Segment files are
// immutable, so the views stay valid while the index remains open.
func (ix *Index) Snapshot() []SegmentView {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	views := make([]SegmentView, 0, len(ix.toc.Segments))
	for _, seg := range ix.toc.Segments {
		r, ok := ix.readers[seg.Name]
		if !ok {
			continue
		}
		var deleted idset.Set
		if len(seg.Deleted) > 0 {
			deleted = idset.NewSortedSet(seg.Deleted...)
		}
		views = append(views, SegmentView{Reader: r, Deleted: deleted})
	}
	return views
}

// Lookup resolves an external document ID to its segment and local document
// number.
func (ix *Index) Lookup(id string) (storage.DocRef, error) {
	return ix.catalog.Get(id)
}

// DeleteByID tombstones a document. The posting data stays in its segment
// until the next merge; searches filter it immediately.
func (ix *Index) DeleteByID(ctx context.Context, id string) error {
	ref, err := ix.catalog.Get(id)
	if err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	seg := ix.toc.find(ref.Segment)
	if seg == nil {
		return errors.Newf(errors.ErrCorrupt, "catalog maps %q to unknown segment %s", id, ref.Segment)
	}
	for _, d := range seg.Deleted {
		if d == ref.DocNum {
			return ix.catalog.Delete(id)
		}
	}
	seg.Deleted = append(seg.Deleted, ref.DocNum)
	if err := saveTOC(ctx, ix.cfg.Index.Dir, ix.toc); err != nil {
		seg.Deleted = seg.Deleted[:len(seg.Deleted)-1]
		return err
	}
	if err := ix.catalog.Delete(id); err != nil {
		return err
	}
	ix.logger.Debug("document deleted", "id", id, "segment", ref.Segment, "doc", ref.DocNum)
	return nil
}

// commit publishes freshly written segments and their catalog entries, marks
// replaced documents deleted, and triggers a merge if the segment count
// crossed the policy threshold.
func (ix *Index) commit(ctx context.Context, segs []tocSegment, refs map[string]storage.DocRef, replaced map[string]storage.DocRef) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return errors.New(errors.ErrWriterClosed, "index is closed")
	}
	for _, s := range segs {
		if err := ix.openReader(s.Name); err != nil {
			return err
		}
	}
	ix.toc.Segments = append(ix.toc.Segments, segs...)
	for _, ref := range replaced {
		if seg := ix.toc.find(ref.Segment); seg != nil {
			seg.Deleted = append(seg.Deleted, ref.DocNum)
		}
	}
	if err := saveTOC(ctx, ix.cfg.Index.Dir, ix.toc); err != nil {
		return err
	}
	if err := ix.catalog.PutBatch(refs); err != nil {
		return err
	}
	ix.observeSegments()
	if max := ix.cfg.Index.MaxSegmentsBeforeMerge; max > 0 && len(ix.toc.Segments) > max {
		if err := ix.mergeLocked(ctx); err != nil {
			ix.logger.Error("segment merge failed", "error", err)
		}
	}
	return nil
}

// mergeLocked folds every live segment into one, remapping catalog entries
// and dropping tombstoned documents for good. Caller holds ix.mu.
func (ix *Index) mergeLocked(ctx context.Context) error {
	names := make([]string, 0, len(ix.toc.Segments))
	readers := make([]*segment.Reader, 0, len(ix.toc.Segments))
	deleted := make([]idset.Set, 0, len(ix.toc.Segments))
	for _, s := range ix.toc.Segments {
		r, ok := ix.readers[s.Name]
		if !ok {
			return errors.Newf(errors.ErrCorrupt, "no reader for segment %s", s.Name)
		}
		names = append(names, s.Name)
		readers = append(readers, r)
		if len(s.Deleted) > 0 {
			deleted = append(deleted, idset.NewSortedSet(s.Deleted...))
		} else {
			deleted = append(deleted, nil)
		}
	}
	src, err := segment.NewMergeSource(readers, deleted)
	if err != nil {
		return err
	}
	w := segment.NewWriter(ix.cfg.Index.Dir, ix.cfg.Index.CompoundBufferSize)
	merged, err := w.Write(src)
	if err != nil {
		return err
	}
	if err := ix.openReader(merged); err != nil {
		return err
	}

	readerIndex := make(map[string]int, len(names))
	for i, n := range names {
		readerIndex[n] = i
	}
	remapped := make(map[string]storage.DocRef)
	err = ix.catalog.ForEach(func(id string, ref storage.DocRef) error {
		i, ok := readerIndex[ref.Segment]
		if !ok {
			return nil
		}
		newDoc, live := src.Remap(i, ref.DocNum)
		if !live {
			return nil
		}
		remapped[id] = storage.DocRef{Segment: merged, DocNum: newDoc}
		return nil
	})
	if err != nil {
		return err
	}
	if err := ix.catalog.PutBatch(remapped); err != nil {
		return err
	}

	ix.toc.Segments = []tocSegment{{Name: merged, DocCount: src.DocCount()}}
	if err := saveTOC(ctx, ix.cfg.Index.Dir, ix.toc); err != nil {
		return err
	}
	for _, n := range names {
		if r := ix.readers[n]; r != nil {
			r.Close()
			delete(ix.readers, n)
		}
		if err := os.Remove(filepath.Join(ix.cfg.Index.Dir, n)); err != nil {
			ix.logger.Warn("could not remove merged-away segment", "segment", n, "error", err)
		}
	}
	ix.observeSegments()
	if ix.metrics != nil {
		ix.metrics.SegmentMergesTotal.Inc()
	}
	ix.logger.Info("segments merged", "merged", len(names), "into", merged, "docs", src.DocCount())
	return nil
}

// Merge forces a full merge regardless of the policy threshold.
func (ix *Index) Merge(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if len(ix.toc.Segments) < 2 {
		return nil
	}
	return ix.mergeLocked(ctx)
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	for name, r := range ix.readers {
		if err := r.Close(); err != nil {
			ix.logger.Warn("closing segment reader", "segment", name, "error", err)
		}
	}
	ix.readers = nil
	return ix.catalog.Close()
}
