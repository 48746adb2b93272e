package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/pkg/errors"
)

func fill(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i%251)
	}
	return out
}

func TestCompoundRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.qcf")
	streams := map[string][]byte{
		"alpha": fill(100, 1),
		"beta":  fill(250, 7),
		"gamma": fill(17, 99),
	}

	w := NewCompoundWriter(path, 64)
	for _, name := range []string{"alpha", "beta", "gamma"} {
		out, err := w.CreateFile(name)
		require.NoError(t, err)
		_, err = out.Write(streams[name])
		require.NoError(t, err)
	}
	require.NoError(t, w.Finalize())

	r, err := OpenCompound(path)
	require.NoError(t, err)
	defer r.Close()

	assert.ElementsMatch(t, []string{"alpha", "beta", "gamma"}, r.Names())
	for name, want := range streams {
		sub, err := r.Open(name)
		require.NoError(t, err)
		assert.Equal(t, int64(len(want)), sub.Len())
		assert.True(t, bytes.Equal(want, sub.Bytes()), "stream %s corrupted", name)
	}

	_, err = r.Open("missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCompoundInterleavedWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.qcf")
	w := NewCompoundWriter(path, 16)

	a, err := w.CreateFile("a")
	require.NoError(t, err)
	b, err := w.CreateFile("b")
	require.NoError(t, err)

	// Alternating writes must not bleed across streams.
	for i := 0; i < 10; i++ {
		_, err = a.Write([]byte{byte(i)})
		require.NoError(t, err)
		_, err = b.Write([]byte{byte(100 + i)})
		require.NoError(t, err)
	}
	require.NoError(t, w.Finalize())

	r, err := OpenCompound(path)
	require.NoError(t, err)
	defer r.Close()

	sub, err := r.Open("a")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, sub.Bytes())
	sub, err = r.Open("b")
	require.NoError(t, err)
	assert.Equal(t, []byte{100, 101, 102, 103, 104, 105, 106, 107, 108, 109}, sub.Bytes())
}

func TestCompoundSubFileReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.qcf")
	w := NewCompoundWriter(path, 1024)
	out, err := w.CreateFile("data")
	require.NoError(t, err)
	_, err = out.Write([]byte("hello compound world"))
	require.NoError(t, err)
	require.NoError(t, w.Finalize())

	r, err := OpenCompound(path)
	require.NoError(t, err)
	defer r.Close()

	sub, err := r.Open("data")
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := sub.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "compo", string(buf[:n]))

	_, err = sub.Seek(6, io.SeekStart)
	require.NoError(t, err)
	all, err := io.ReadAll(sub)
	require.NoError(t, err)
	assert.Equal(t, "compound world", string(all))
}

func TestCompoundAbortLeavesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.qcf")
	w := NewCompoundWriter(path, 8)
	out, err := w.CreateFile("a")
	require.NoError(t, err)
	_, err = out.Write(fill(100, 3))
	require.NoError(t, err)
	w.Abort()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCompoundRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, []byte("not a compound file at all"), 0o644))
	_, err := OpenCompound(path)
	assert.ErrorIs(t, err, errors.ErrCorrupt)
}

func TestDocStore(t *testing.T) {
	store, err := OpenDocStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("doc-1", DocRef{Segment: "seg_a", DocNum: 0}))
	require.NoError(t, store.PutBatch(map[string]DocRef{
		"doc-2": {Segment: "seg_a", DocNum: 1},
		"doc-3": {Segment: "seg_b", DocNum: 0},
	}))

	ref, err := store.Get("doc-2")
	require.NoError(t, err)
	assert.Equal(t, DocRef{Segment: "seg_a", DocNum: 1}, ref)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	seen := map[string]DocRef{}
	require.NoError(t, store.ForEach(func(id string, ref DocRef) error {
		seen[id] = ref
		return nil
	}))
	assert.Len(t, seen, 3)

	require.NoError(t, store.Delete("doc-1"))
	_, err = store.Get("doc-1")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Re-put moves a document.
	require.NoError(t, store.Put("doc-3", DocRef{Segment: "seg_c", DocNum: 9}))
	ref, err = store.Get("doc-3")
	require.NoError(t, err)
	assert.Equal(t, DocRef{Segment: "seg_c", DocNum: 9}, ref)
}
