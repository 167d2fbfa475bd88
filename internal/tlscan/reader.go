package tlscan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"

	"github.com/banshee-data/voxel.report/internal/fsutil"
)

const (
	defaultBufferSize = 64 * 1024
	maxBufferSize     = 4 * 1024 * 1024
)

// BufferSizeFor returns a read buffer large enough to hold a batch of
// nRead beams with a couple of hits each.
func BufferSizeFor(nRead uint32) int {
	size := int(nRead) * RecordSize(2)
	switch {
	case size < 4096:
		return 4096
	case size > maxBufferSize:
		return maxBufferSize
	}
	return size
}

// Reader streams beam records from a polar binary file. It owns the file
// handle until Close.
type Reader struct {
	name   string
	file   fs.File
	br     *bufio.Reader
	header Header
	cursor Cursor
	buf    []byte
}

// Open opens name on fsys, reads its header and positions the reader at
// the first beam. bufSize <= 0 selects a default buffer.
func Open(fsys fsutil.FileSystem, name string, bufSize int) (*Reader, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan %q: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat scan %q: %w", name, err)
	}
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}

	r := &Reader{
		name:   name,
		file:   f,
		br:     bufio.NewReaderSize(f, bufSize),
		cursor: Cursor{TotSize: uint64(info.Size())},
		buf:    make([]byte, maxRecordBuffer),
	}

	h, err := DecodeHeader(r.br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("scan %q: %w", name, err)
	}
	r.header = h
	if err := r.cursor.advance(0, HeaderSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("scan %q: %w", name, err)
	}

	if h.DeclaredSize != r.cursor.TotSize {
		scanLogf(streamDiag, name, "header declares %d bytes, file has %d", h.DeclaredSize, r.cursor.TotSize)
	}
	scanLogf(streamTrace, name, "opened, %d beams, %d bytes", h.NBeams, r.cursor.TotSize)
	return r, nil
}

// Name returns the file name the reader was opened on.
func (r *Reader) Name() string { return r.name }

// Header returns the decoded file header.
func (r *Reader) Header() Header { return r.header }

// Cursor returns the current read position.
func (r *Reader) Cursor() Cursor { return r.cursor }

// Remaining returns the beams the header still promises.
func (r *Reader) Remaining() uint32 {
	if r.cursor.POffset >= r.header.NBeams {
		return 0
	}
	return r.header.NBeams - r.cursor.POffset
}

// Read fills dst with the next beams, stopping early when the header's
// beam count is reached. It returns the number of beams read; fewer than
// len(dst) with a nil error means the scan is exhausted. A record cut short
// by the end of the file yields ErrTruncated along with the beams read
// before it.
func (r *Reader) Read(dst []Beam) (int, error) {
	if r.file == nil {
		return 0, ErrClosed
	}
	want := len(dst)
	if rem := int(r.Remaining()); want > rem {
		want = rem
	}

	for i := 0; i < want; i++ {
		beamIdx := r.cursor.POffset
		n, err := decodeBeam(r.br, &dst[i], r.buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrTruncated) {
				return i, fmt.Errorf("%w: scan %q beam %d of %d (%d bytes into record)",
					ErrTruncated, r.name, beamIdx, r.header.NBeams, n)
			}
			return i, fmt.Errorf("failed to read scan %q beam %d: %w", r.name, beamIdx, err)
		}
		if err := r.cursor.advance(1, uint64(n)); err != nil {
			return i, fmt.Errorf("scan %q beam %d: %w", r.name, beamIdx, err)
		}
	}

	if r.Remaining() == 0 && !r.cursor.Done() {
		scanLogf(streamDiag, r.name, "%d trailing bytes after last beam", r.cursor.TotSize-r.cursor.TotRead)
	}
	return want, nil
}

// Beams yields every remaining beam in file order. The yielded Beam is
// reused between iterations; copy it to keep it.
func (r *Reader) Beams() iter.Seq2[*Beam, error] {
	return func(yield func(*Beam, error) bool) {
		one := make([]Beam, 1)
		for r.Remaining() > 0 {
			n, err := r.Read(one)
			if err != nil {
				yield(nil, err)
				return
			}
			if n == 0 {
				return
			}
			if !yield(&one[0], nil) {
				return
			}
		}
	}
}

// Close releases the file handle. Safe to call more than once.
func (r *Reader) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.br = nil
	return err
}

// ReadBatch reads up to n beams of s into s.Beams, capping n at s.MaxRead
// and reusing the beam array between calls. It returns the number of beams
// read; fewer than requested means the end of the scan. s.Cursor is updated
// from the reader after every call, including failed ones.
func ReadBatch(s *Scan, n int) (int, error) {
	if !s.Reading() {
		return 0, ErrClosed
	}
	if n <= 0 {
		return 0, nil
	}
	if s.MaxRead > 0 && n > int(s.MaxRead) {
		n = int(s.MaxRead)
	}

	if cap(s.Beams) >= n {
		s.Beams = s.Beams[:n]
	} else {
		grown := make([]Beam, n)
		copy(grown, s.Beams[:cap(s.Beams)])
		s.Beams = grown
	}

	got, err := s.reader.Read(s.Beams)
	s.Beams = s.Beams[:got]
	s.Cursor = s.reader.Cursor()
	if err != nil {
		return got, err
	}
	s.tracef("batch of %d beams, %d/%d bytes", got, s.Cursor.TotRead, s.Cursor.TotSize)
	return got, nil
}
