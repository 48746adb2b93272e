package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quillsearch/quill/pkg/resilience"
)

const tocFileName = "toc.json"

// tocSegment is one live segment entry in the table of contents. Deleted
// holds local document numbers tombstoned since the segment was written;
// segment files themselves are never rewritten in place.
type tocSegment struct {
	Name     string   `json:"name"`
	DocCount uint32   `json:"doc_count"`
	Deleted  []uint32 `json:"deleted,omitempty"`
}

// tableOfContents is the single mutable file in an index directory. Readers
// that loaded an older generation keep working against the segment files it
// referenced.
type tableOfContents struct {
	Generation uint64       `json:"generation"`
	Segments   []tocSegment `json:"segments"`
}

func loadTOC(dir string) (*tableOfContents, error) {
	data, err := os.ReadFile(filepath.Join(dir, tocFileName))
	if os.IsNotExist(err) {
		return &tableOfContents{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading table of contents: %w", err)
	}
	var toc tableOfContents
	if err := json.Unmarshal(data, &toc); err != nil {
		return nil, fmt.Errorf("parsing table of contents: %w", err)
	}
	return &toc, nil
}

// saveTOC bumps the generation and atomically replaces the file via temp
// write, fsync and rename, retrying the swap with backoff.
func saveTOC(ctx context.Context, dir string, toc *tableOfContents) error {
	toc.Generation++
	data, err := json.Marshal(toc)
	if err != nil {
		return fmt.Errorf("marshaling table of contents: %w", err)
	}
	target := filepath.Join(dir, tocFileName)
	return resilience.Retry(ctx, "toc-swap", resilience.RetryConfig{}, func() error {
		tmp, err := os.CreateTemp(dir, tocFileName+".tmp-*")
		if err != nil {
			return err
		}
		name := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(name)
			return err
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			os.Remove(name)
			return err
		}
		if err := tmp.Close(); err != nil {
			os.Remove(name)
			return err
		}
		if err := os.Rename(name, target); err != nil {
			os.Remove(name)
			return err
		}
		return nil
	})
}

func (t *tableOfContents) find(name string) *tocSegment {
	for i := range t.Segments {
		if t.Segments[i].Name == name {
			return &t.Segments[i]
		}
	}
	return nil
}

// liveDocs returns the total non-deleted document count.
func (t *tableOfContents) liveDocs() uint64 {
	var n uint64
	for _, s := range t.Segments {
		n += uint64(s.DocCount) - uint64(len(s.Deleted))
	}
	return n
}
