package tlscan

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

/*
Polar binary layout (little-endian)

Header (12 bytes):
  uint32 nBeams        beams in the file
  uint64 declaredSize  file size as written by the instrument

Beam record (37 + 8*nHits bytes):
  float32 zen, az      radians
  float64 x, y, z      beam origin
  uint32  shotN
  uint8   nHits
  float32 range[nHits]
  float32 refl[nHits]
*/

const (
	HeaderSize      = 12
	BeamFixedSize   = 4 + 4 + 8*3 + 4 + 1
	bytesPerHit     = 8
	maxRecordBuffer = BeamFixedSize + 255*bytesPerHit
)

// Header is the fixed preamble of a polar binary scan file.
type Header struct {
	NBeams       uint32
	DeclaredSize uint64
}

// RecordSize returns the encoded size of a beam record with nHits hits.
func RecordSize(nHits int) int {
	return BeamFixedSize + nHits*bytesPerHit
}

// EncodeHeader writes h to w.
func EncodeHeader(w io.Writer, h Header) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.NBeams)
	binary.LittleEndian.PutUint64(buf[4:12], h.DeclaredSize)
	_, err := w.Write(buf[:])
	return err
}

// DecodeHeader reads a header from r.
func DecodeHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: header", ErrTruncated)
		}
		return Header{}, fmt.Errorf("failed to read header: %w", err)
	}
	return Header{
		NBeams:       binary.LittleEndian.Uint32(buf[0:4]),
		DeclaredSize: binary.LittleEndian.Uint64(buf[4:12]),
	}, nil
}

// decodeBeam reads one record into b, reusing b.Hits. buf must hold at
// least maxRecordBuffer bytes. Returns the bytes consumed. A clean io.EOF is
// returned only when no byte of the record was available.
func decodeBeam(r io.Reader, b *Beam, buf []byte) (int, error) {
	fixed := buf[:BeamFixedSize]
	n, err := io.ReadFull(r, fixed)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return 0, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return n, ErrTruncated
		}
		return n, err
	}

	b.Zen = math.Float32frombits(binary.LittleEndian.Uint32(fixed[0:4]))
	b.Az = math.Float32frombits(binary.LittleEndian.Uint32(fixed[4:8]))
	b.X = math.Float64frombits(binary.LittleEndian.Uint64(fixed[8:16]))
	b.Y = math.Float64frombits(binary.LittleEndian.Uint64(fixed[16:24]))
	b.Z = math.Float64frombits(binary.LittleEndian.Uint64(fixed[24:32]))
	b.ShotN = binary.LittleEndian.Uint32(fixed[32:36])
	b.NHits = fixed[36]

	nHits := int(b.NHits)
	if cap(b.Hits) >= nHits {
		b.Hits = b.Hits[:nHits]
	} else {
		b.Hits = make([]Hit, nHits)
	}
	if nHits == 0 {
		return n, nil
	}

	body := buf[BeamFixedSize : BeamFixedSize+nHits*bytesPerHit]
	m, err := io.ReadFull(r, body)
	n += m
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, ErrTruncated
		}
		return n, err
	}

	refl := body[nHits*4:]
	for i := 0; i < nHits; i++ {
		b.Hits[i] = Hit{
			Range: math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:])),
			Refl:  math.Float32frombits(binary.LittleEndian.Uint32(refl[i*4:])),
		}
	}
	return n, nil
}

// appendBeam appends the encoding of b to dst.
func appendBeam(dst []byte, b *Beam) []byte {
	le := binary.LittleEndian
	dst = le.AppendUint32(dst, math.Float32bits(b.Zen))
	dst = le.AppendUint32(dst, math.Float32bits(b.Az))
	dst = le.AppendUint64(dst, math.Float64bits(b.X))
	dst = le.AppendUint64(dst, math.Float64bits(b.Y))
	dst = le.AppendUint64(dst, math.Float64bits(b.Z))
	dst = le.AppendUint32(dst, b.ShotN)
	dst = append(dst, uint8(len(b.Hits)))
	for _, h := range b.Hits {
		dst = le.AppendUint32(dst, math.Float32bits(h.Range))
	}
	for _, h := range b.Hits {
		dst = le.AppendUint32(dst, math.Float32bits(h.Refl))
	}
	return dst
}

// Writer streams beams into the polar binary format. The header is written
// up front, so the beam count must be known in advance.
type Writer struct {
	w       *bufio.Writer
	buf     []byte
	want    uint32
	written uint32
}

// NewWriter writes the header and returns a Writer expecting nBeams beams.
func NewWriter(w io.Writer, nBeams uint32, declaredSize uint64) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if err := EncodeHeader(bw, Header{NBeams: nBeams, DeclaredSize: declaredSize}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &Writer{w: bw, buf: make([]byte, 0, maxRecordBuffer), want: nBeams}, nil
}

// WriteBeam appends one beam record. Beams carry at most 255 hits.
func (w *Writer) WriteBeam(b *Beam) error {
	if len(b.Hits) > math.MaxUint8 {
		return fmt.Errorf("%w: beam %d has %d hits (max 255)", ErrInconsistent, b.ShotN, len(b.Hits))
	}
	if w.written >= w.want {
		return fmt.Errorf("%w: more than %d beams written", ErrInconsistent, w.want)
	}
	w.buf = appendBeam(w.buf[:0], b)
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write beam %d: %w", b.ShotN, err)
	}
	w.written++
	return nil
}

// Close flushes buffered records. It reports ErrInconsistent if fewer beams
// were written than the header declared.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush scan: %w", err)
	}
	if w.written != w.want {
		return fmt.Errorf("%w: wrote %d of %d beams", ErrInconsistent, w.written, w.want)
	}
	return nil
}

// EncodedSize returns the file size of beams once encoded.
func EncodedSize(beams []Beam) uint64 {
	size := uint64(HeaderSize)
	for i := range beams {
		size += uint64(RecordSize(len(beams[i].Hits)))
	}
	return size
}

// EncodeScan writes a complete scan file holding beams.
func EncodeScan(w io.Writer, beams []Beam) error {
	sw, err := NewWriter(w, uint32(len(beams)), EncodedSize(beams))
	if err != nil {
		return err
	}
	for i := range beams {
		if err := sw.WriteBeam(&beams[i]); err != nil {
			return err
		}
	}
	return sw.Close()
}
