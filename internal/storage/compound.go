// Package storage implements the physical index storage: a compound file
// packing many named byte streams into one file with a trailing directory,
// read back through bounded memory-mapped views, and a bbolt-backed document
// catalog.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/edsrzf/mmap-go"

	"github.com/quillsearch/quill/pkg/errors"
)

// MagicBytes identifies a valid compound file.
const (
	MagicBytes    uint32 = 0x51434631 // "QCF1"
	FormatVersion uint32 = 1
	headerSize           = 8
	footerSize           = 12 // 8-byte directory offset + 4-byte directory length
)

// DirEntry records where one named sub-stream lives inside the compound file.
type DirEntry struct {
	Name     string `json:"n"`
	Offset   int64  `json:"o"`
	Length   int64  `json:"l"`
	Modified int64  `json:"m"`
}

// CompoundWriter buffers named sub-streams independently and concatenates
// them into a single file on Finalize. Each stream buffers in memory up to
// bufferSize bytes, then spills to a temp file.
type CompoundWriter struct {
	path       string
	bufferSize int
	streams    []*subStream
	byName     map[string]*subStream
	closed     bool
}

type subStream struct {
	name     string
	buf      []byte
	spill    *os.File
	size     int64
	modified time.Time
	owner    *CompoundWriter
}

func NewCompoundWriter(path string, bufferSize int) *CompoundWriter {
	if bufferSize <= 0 {
		bufferSize = 1 << 20
	}
	return &CompoundWriter{
		path:       path,
		bufferSize: bufferSize,
		byName:     make(map[string]*subStream),
	}
}

// CreateFile opens a new named sub-stream for writing. Names must be unique
// within the compound file.
func (w *CompoundWriter) CreateFile(name string) (io.Writer, error) {
	if w.closed {
		panic("storage: CreateFile on finalized compound writer")
	}
	if _, exists := w.byName[name]; exists {
		return nil, fmt.Errorf("sub-file %q already exists in compound file", name)
	}
	s := &subStream{name: name, modified: time.Now(), owner: w}
	w.streams = append(w.streams, s)
	w.byName[name] = s
	return s, nil
}

func (s *subStream) Write(p []byte) (int, error) {
	if s.owner.closed {
		panic("storage: write to sub-stream of finalized compound writer")
	}
	s.modified = time.Now()
	s.size += int64(len(p))
	if s.spill == nil && len(s.buf)+len(p) <= s.owner.bufferSize {
		s.buf = append(s.buf, p...)
		return len(p), nil
	}
	if s.spill == nil {
		f, err := os.CreateTemp("", "quill-compound-*")
		if err != nil {
			return 0, fmt.Errorf("creating spill file for %q: %w", s.name, err)
		}
		if _, err := f.Write(s.buf); err != nil {
			return 0, fmt.Errorf("spilling buffered bytes for %q: %w", s.name, err)
		}
		s.spill = f
		s.buf = nil
	}
	if _, err := s.spill.Write(p); err != nil {
		return 0, fmt.Errorf("writing spill file for %q: %w", s.name, err)
	}
	return len(p), nil
}

// Finalize concatenates every sub-stream into the destination file, writes
// the directory and the fixed trailing footer, and fsyncs. It writes to a
// .tmp file and renames on success. The writer is unusable afterwards.
func (w *CompoundWriter) Finalize() error {
	if w.closed {
		panic("storage: Finalize called twice on compound writer")
	}
	w.closed = true
	tmpPath := w.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating compound file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("writing compound header: %w", err)
	}

	offset := int64(headerSize)
	dir := make([]DirEntry, 0, len(w.streams))
	for _, s := range w.streams {
		n, err := s.copyTo(f)
		if err != nil {
			return fmt.Errorf("writing sub-file %q: %w", s.name, err)
		}
		dir = append(dir, DirEntry{
			Name:     s.name,
			Offset:   offset,
			Length:   n,
			Modified: s.modified.Unix(),
		})
		offset += n
	}

	dirData, err := json.Marshal(dir)
	if err != nil {
		return fmt.Errorf("marshaling compound directory: %w", err)
	}
	if _, err := f.Write(dirData); err != nil {
		return fmt.Errorf("writing compound directory: %w", err)
	}
	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(footer[0:8], uint64(offset))
	binary.LittleEndian.PutUint32(footer[8:12], uint32(len(dirData)))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing compound footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing compound file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing compound file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("renaming compound file: %w", err)
	}
	return nil
}

// Abort discards all buffered data and spill files without writing anything.
func (w *CompoundWriter) Abort() {
	w.closed = true
	for _, s := range w.streams {
		s.discard()
	}
}

func (s *subStream) copyTo(dst io.Writer) (int64, error) {
	defer s.discard()
	if s.spill != nil {
		if _, err := s.spill.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		return io.Copy(dst, s.spill)
	}
	n, err := dst.Write(s.buf)
	return int64(n), err
}

func (s *subStream) discard() {
	if s.spill != nil {
		name := s.spill.Name()
		s.spill.Close()
		os.Remove(name)
		s.spill = nil
	}
	s.buf = nil
}

// CompoundReader memory-maps a sealed compound file and serves bounded
// sub-range views by name. Multiple readers may open the same file
// concurrently without coordination.
type CompoundReader struct {
	file *os.File
	mm   mmap.MMap
	dir  map[string]DirEntry
}

func OpenCompound(path string) (*CompoundReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening compound file: %w", err)
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mapping compound file: %w", err)
	}
	r := &CompoundReader{file: f, mm: mm}
	if err := r.readDirectory(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *CompoundReader) readDirectory() error {
	data := []byte(r.mm)
	if len(data) < headerSize+footerSize {
		return errors.Newf(errors.ErrCorrupt, "compound file too small: %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != MagicBytes {
		return errors.Newf(errors.ErrCorrupt, "bad compound magic %x", magic)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != FormatVersion {
		return errors.Newf(errors.ErrCorrupt, "unsupported compound version %d", version)
	}
	footer := data[len(data)-footerSize:]
	dirOffset := int64(binary.LittleEndian.Uint64(footer[0:8]))
	dirLen := int64(binary.LittleEndian.Uint32(footer[8:12]))
	if dirOffset < headerSize || dirOffset+dirLen > int64(len(data)-footerSize) {
		return errors.Newf(errors.ErrCorrupt, "compound directory out of bounds: offset=%d len=%d", dirOffset, dirLen)
	}
	var entries []DirEntry
	if err := json.Unmarshal(data[dirOffset:dirOffset+dirLen], &entries); err != nil {
		return errors.Newf(errors.ErrCorrupt, "parsing compound directory: %v", err)
	}
	r.dir = make(map[string]DirEntry, len(entries))
	for _, e := range entries {
		if e.Offset < headerSize || e.Offset+e.Length > dirOffset {
			return errors.Newf(errors.ErrCorrupt, "sub-file %q out of bounds", e.Name)
		}
		r.dir[e.Name] = e
	}
	return nil
}

// Open returns a bounded view over the named sub-file. The view only exposes
// the bytes belonging to that name; reads and seeks past its length are
// clamped.
func (r *CompoundReader) Open(name string) (*SubFile, error) {
	e, ok := r.dir[name]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "no sub-file %q in compound file", name)
	}
	return &SubFile{data: r.mm[e.Offset : e.Offset+e.Length]}, nil
}

// Has reports whether the named sub-file exists.
func (r *CompoundReader) Has(name string) bool {
	_, ok := r.dir[name]
	return ok
}

// Names returns the sub-file names in directory order.
func (r *CompoundReader) Names() []string {
	out := make([]string, 0, len(r.dir))
	for name := range r.dir {
		out = append(out, name)
	}
	return out
}

func (r *CompoundReader) Close() error {
	var err error
	if r.mm != nil {
		err = r.mm.Unmap()
		r.mm = nil
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// SubFile is a bounded, seekable view over one sub-stream of a compound file.
type SubFile struct {
	data []byte
	pos  int64
}

// Bytes returns the sub-file's full contents. The slice aliases the mapping
// and is only valid until the reader is closed.
func (s *SubFile) Bytes() []byte { return s.data }

// Len returns the sub-file length in bytes.
func (s *SubFile) Len() int64 { return int64(len(s.data)) }

func (s *SubFile) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *SubFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek clamps the resulting position to [0, Len].
func (s *SubFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.pos + offset
	case io.SeekEnd:
		pos = int64(len(s.data)) + offset
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > int64(len(s.data)) {
		pos = int64(len(s.data))
	}
	s.pos = pos
	return pos, nil
}
