package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillsearch/quill/internal/segment"
	"github.com/quillsearch/quill/internal/storage"
	"github.com/quillsearch/quill/pkg/config"
	"github.com/quillsearch/quill/pkg/errors"
)

type writerState int

const (
	writerOpen writerState = iota
	writerCommitting
	writerClosed
	writerCancelled
)

// Document is one external document: a caller-assigned unique ID and its
// field values.
type Document struct {
	ID     string
	Fields map[string]string
}

// Writer batches documents into new segments and publishes them atomically on
// Commit. A writer moves through open, committing and closed (or cancelled)
// states; documents are only searchable after Commit returns.
//
// With Workers > 0 analysis runs on a pool: batches flow over a bounded job
// channel and every worker accumulates its own in-memory run. Commit folds
// the runs into one segment, or one segment per run in multisegment mode.
type Writer struct {
	ix     *Index
	cfg    config.WriterConfig
	logger *slog.Logger
	segw   *segment.Writer

	mu    sync.Mutex
	state writerState

	mem      *segment.MemSegment
	ids      []string
	replaced map[string]storage.DocRef

	pendingSegs []tocSegment
	pendingRefs map[string]storage.DocRef
	indexed     uint64

	jobs   chan []Document
	batch  []Document
	eg     *errgroup.Group
	cancel context.CancelFunc
	runs   []*workerRun
}

type workerRun struct {
	mem *segment.MemSegment
	ids []string
}

// Writer opens a new writer on the index.
func (ix *Index) Writer() *Writer {
	w := &Writer{
		ix:          ix,
		cfg:         ix.cfg.Writer,
		logger:      slog.Default().With("component", "writer"),
		segw:        segment.NewWriter(ix.cfg.Index.Dir, ix.cfg.Index.CompoundBufferSize),
		mem:         segment.NewMemSegment(ix.sch),
		replaced:    make(map[string]storage.DocRef),
		pendingRefs: make(map[string]storage.DocRef),
	}
	if w.cfg.Workers > 0 {
		w.startWorkers()
	}
	return w
}

func (w *Writer) startWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.eg, _ = errgroup.WithContext(ctx)
	depth := w.cfg.JobQueueDepth
	if depth <= 0 {
		depth = 1
	}
	w.jobs = make(chan []Document, depth)
	w.runs = make([]*workerRun, w.cfg.Workers)
	for i := 0; i < w.cfg.Workers; i++ {
		run := &workerRun{mem: segment.NewMemSegment(w.ix.sch)}
		w.runs[i] = run
		w.eg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case docs, ok := <-w.jobs:
					if !ok {
						return nil
					}
					for _, d := range docs {
						w.analyzeInto(run, d)
					}
					if w.ix.metrics != nil {
						w.ix.metrics.WorkerBatchesTotal.WithLabelValues("ok").Inc()
					}
				}
			}
		})
	}
}

// analyzeInto indexes one document into a run. Documents that analyze to
// nothing are skipped and logged rather than failing the batch.
func (w *Writer) analyzeInto(run *workerRun, d Document) {
	if !w.indexable(d) {
		return
	}
	run.mem.AddDocument(d.Fields)
	run.ids = append(run.ids, d.ID)
}

func (w *Writer) indexable(d Document) bool {
	for _, name := range w.ix.sch.Names() {
		if _, ok := d.Fields[name]; ok {
			return true
		}
	}
	w.logger.Warn("document has no indexable fields, skipping", "id", d.ID)
	if w.ix.metrics != nil {
		w.ix.metrics.DocsSkippedTotal.Inc()
	}
	return false
}

// AddDocument queues one document for indexing. Re-adding an existing ID
// replaces the old document at commit time.
func (w *Writer) AddDocument(ctx context.Context, d Document) error {
	if d.ID == "" {
		return fmt.Errorf("document ID must not be empty")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != writerOpen {
		return errors.New(errors.ErrWriterClosed, "writer is not open")
	}
	if old, err := w.ix.Lookup(d.ID); err == nil {
		w.replaced[d.ID] = old
	}
	w.indexed++

	if w.jobs != nil {
		w.batch = append(w.batch, d)
		if len(w.batch) >= w.cfg.BatchSize {
			return w.submitLocked(ctx)
		}
		return nil
	}

	if !w.indexable(d) {
		return nil
	}
	w.mem.AddDocument(d.Fields)
	w.ids = append(w.ids, d.ID)
	if w.cfg.BufferedDocs > 0 && int(w.mem.DocCount()) >= w.cfg.BufferedDocs {
		return w.flushSerialLocked()
	}
	return nil
}

func (w *Writer) submitLocked(ctx context.Context) error {
	docs := w.batch
	w.batch = nil
	select {
	case w.jobs <- docs:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flushSerialLocked writes the serial buffer out as a pending segment.
func (w *Writer) flushSerialLocked() error {
	if w.mem.DocCount() == 0 {
		return nil
	}
	name, err := w.segw.Write(w.mem)
	if err != nil {
		if w.ix.metrics != nil {
			w.ix.metrics.SegmentFlushes.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("flushing segment: %w", err)
	}
	w.recordSegment(name, w.mem.DocCount(), w.ids)
	w.logger.Debug("buffer flushed", "segment", name, "docs", w.mem.DocCount())
	w.mem = segment.NewMemSegment(w.ix.sch)
	w.ids = nil
	return nil
}

func (w *Writer) recordSegment(name string, docCount uint32, ids []string) {
	w.pendingSegs = append(w.pendingSegs, tocSegment{Name: name, DocCount: docCount})
	for doc, id := range ids {
		w.pendingRefs[id] = storage.DocRef{Segment: name, DocNum: uint32(doc)}
	}
	if w.ix.metrics != nil {
		w.ix.metrics.SegmentFlushes.WithLabelValues("ok").Inc()
	}
}

// Commit writes out all buffered documents and atomically publishes the new
// segments. The writer cannot be used afterwards.
func (w *Writer) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != writerOpen {
		return errors.New(errors.ErrWriterClosed, "writer is not open")
	}
	w.state = writerCommitting

	if w.jobs != nil {
		if err := w.drainWorkersLocked(ctx); err != nil {
			w.state = writerCancelled
			w.abandonPendingLocked()
			return err
		}
	} else if err := w.flushSerialLocked(); err != nil {
		w.state = writerCancelled
		w.abandonPendingLocked()
		return err
	}

	if len(w.pendingSegs) == 0 && len(w.replaced) == 0 {
		w.state = writerClosed
		return nil
	}
	if err := w.ix.commit(ctx, w.pendingSegs, w.pendingRefs, w.replaced); err != nil {
		w.state = writerCancelled
		w.abandonPendingLocked()
		return err
	}
	if w.ix.metrics != nil {
		w.ix.metrics.DocsIndexedTotal.Add(float64(w.indexed))
	}
	w.logger.Info("commit complete", "segments", len(w.pendingSegs), "docs", w.indexed)
	w.state = writerClosed
	return nil
}

// drainWorkersLocked submits the partial batch, waits for the pool to finish
// within ResultTimeout, and turns the finished runs into pending segments.
func (w *Writer) drainWorkersLocked(ctx context.Context) error {
	if len(w.batch) > 0 {
		if err := w.submitLocked(ctx); err != nil {
			return err
		}
	}
	close(w.jobs)
	done := make(chan error, 1)
	go func() { done <- w.eg.Wait() }()
	timeout := w.cfg.ResultTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			return err
		}
	case <-time.After(timeout):
		w.cancel()
		if w.ix.metrics != nil {
			w.ix.metrics.WorkerBatchesTotal.WithLabelValues("timeout").Inc()
		}
		return errors.Newf(errors.ErrWorkerUnresponsive,
			"indexing workers did not finish within %v", timeout)
	case <-ctx.Done():
		w.cancel()
		return ctx.Err()
	}
	w.cancel()

	live := make([]*workerRun, 0, len(w.runs))
	for _, run := range w.runs {
		if run.mem.DocCount() > 0 {
			live = append(live, run)
		}
	}
	if len(live) == 0 {
		return nil
	}

	if w.cfg.Multisegment {
		for _, run := range live {
			name, err := w.segw.Write(run.mem)
			if err != nil {
				if w.ix.metrics != nil {
					w.ix.metrics.SegmentFlushes.WithLabelValues("error").Inc()
				}
				return fmt.Errorf("flushing worker run: %w", err)
			}
			w.recordSegment(name, run.mem.DocCount(), run.ids)
		}
		return nil
	}

	sources := make([]segment.Source, len(live))
	for i, run := range live {
		sources[i] = run.mem
	}
	concat := segment.NewConcatSource(sources)
	name, err := w.segw.Write(concat)
	if err != nil {
		if w.ix.metrics != nil {
			w.ix.metrics.SegmentFlushes.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("flushing combined runs: %w", err)
	}
	w.pendingSegs = append(w.pendingSegs, tocSegment{Name: name, DocCount: concat.DocCount()})
	for i, run := range live {
		base := concat.Base(i)
		for doc, id := range run.ids {
			w.pendingRefs[id] = storage.DocRef{Segment: name, DocNum: base + uint32(doc)}
		}
	}
	if w.ix.metrics != nil {
		w.ix.metrics.SegmentFlushes.WithLabelValues("ok").Inc()
	}
	return nil
}

// Cancel discards everything the writer buffered, including intermediate
// segment files already flushed to disk but never published.
func (w *Writer) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == writerClosed || w.state == writerCancelled {
		return
	}
	w.state = writerCancelled
	if w.cancel != nil {
		w.cancel()
	}
	w.abandonPendingLocked()
	w.logger.Info("writer cancelled", "discarded_docs", w.indexed)
}

func (w *Writer) abandonPendingLocked() {
	for _, s := range w.pendingSegs {
		path := filepath.Join(w.ix.cfg.Index.Dir, s.Name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("could not remove abandoned segment", "segment", s.Name, "error", err)
		}
	}
	w.pendingSegs = nil
	w.pendingRefs = make(map[string]storage.DocRef)
	w.mem = segment.NewMemSegment(w.ix.sch)
	w.ids = nil
	w.batch = nil
}

// BufferedPostings exposes the serial path's uncommitted postings for one
// term, in ascending document order.
func (w *Writer) BufferedPostings(field, term string) []segment.Posting {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mem.PostingsFor(field, term)
}
