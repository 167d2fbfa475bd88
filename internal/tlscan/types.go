// Package tlscan reads terrestrial laser scans stored as polar beam records
// and turns them into offset-compressed Cartesian point clouds with a
// per-point gap fraction.
//
// A scan is loaded in batches: the Reader pulls at most NRead beams from the
// file, Assemble expands their hits into Points, and the loop repeats until
// the Reader returns a short batch. Tidy is the only release path.
package tlscan

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Sentinels for values that cannot be determined.
const (
	// GapUndefined marks a point whose gap fraction could not be computed.
	GapUndefined float32 = -1
	// SepUndefined is returned by DetermineGaussSep for degenerate input.
	SepUndefined float32 = -1
	// BinUnassigned is the default voxel bin of a fresh point.
	BinUnassigned = -1
)

var (
	// ErrTruncated reports a record cut short by the end of the file.
	ErrTruncated = errors.New("tlscan: truncated beam record")
	// ErrInconsistent reports data that contradicts its own counts.
	ErrInconsistent = errors.New("tlscan: inconsistent scan data")
	// ErrBadSlot reports a slot index outside the scan collection.
	ErrBadSlot = errors.New("tlscan: slot out of range")
	// ErrClosed reports a read on a scan whose file is not open.
	ErrClosed = errors.New("tlscan: scan file not open")
)

// Hit is one return along a beam.
type Hit struct {
	Range float32 // metres from the beam origin
	Refl  float32 // reflectance as recorded by the instrument
}

// Beam is one emitted pulse and its returns.
type Beam struct {
	Zen   float32 // zenith, radians
	Az    float32 // azimuth, radians
	X     float64 // beam origin
	Y     float64
	Z     float64
	ShotN uint32 // shot number within the scan
	NHits uint8  // declared number of hits
	Hits  []Hit
}

// Point is one Cartesian return. X, Y and Z are relative to the owning
// scan's offset.
type Point struct {
	Bin   int
	X     float32
	Y     float32
	Z     float32
	Gap   float32
	R     float32
	Refl  uint16
	HitN  uint32 // hit number within the scan
	NHits uint8  // hits of the originating beam
}

// Registration describes how assembled points map into the scan frame.
// A scan is either PolarRegistration (raw polar binary) or
// MatrixRegistration (formats that embed their own transform).
type Registration interface {
	isRegistration()
}

// PolarRegistration leaves points in the frame the beams were recorded in.
type PolarRegistration struct{}

// MatrixRegistration applies a 4x4 row-major homogeneous transform to each
// assembled point.
type MatrixRegistration struct {
	M *mat.Dense
}

func (PolarRegistration) isRegistration()  {}
func (MatrixRegistration) isRegistration() {}

// Orientation rotates a scan into a common frame: first about the vertical
// axis by Z, then about the horizontal axis by X. Angles in radians.
type Orientation struct {
	Z float64
	X float64
}

// IsZero reports whether the orientation is the identity.
func (o Orientation) IsZero() bool { return o.Z == 0 && o.X == 0 }

// Cursor tracks how far a scan file has been consumed. It is advanced only
// by the Reader.
type Cursor struct {
	POffset uint32 // beams consumed so far
	TotRead uint64 // bytes consumed so far, header included
	TotSize uint64 // size of the file in bytes
}

// Done reports whether every byte of the file has been consumed.
func (c Cursor) Done() bool { return c.TotRead >= c.TotSize }

// Progress returns the fraction of the file consumed, in [0,1].
func (c Cursor) Progress() float64 {
	if c.TotSize == 0 {
		return 1
	}
	return float64(c.TotRead) / float64(c.TotSize)
}

func (c *Cursor) advance(beams uint32, bytes uint64) error {
	if c.TotRead+bytes > c.TotSize {
		return fmt.Errorf("%w: read past end of file", ErrInconsistent)
	}
	c.POffset += beams
	c.TotRead += bytes
	return nil
}

// Scan is one terrestrial laser scan: the current batch of beams, every
// point assembled so far, and the state needed to keep reading.
//
// A Scan is not safe for concurrent use. Parallel loaders must give each
// worker its own Scan.
type Scan struct {
	ID   uuid.UUID
	Name string

	Beams  []Beam  // current batch
	Points []Point // all points assembled so far

	XOff, YOff, ZOff float64
	offsetSet        bool

	NBeams  uint32 // beams declared by the file header
	NPoints uint32

	NRead   uint32 // beams per batch
	MaxRead uint32 // upper bound on beams held at once
	Cursor  Cursor

	OffsetGrid   float64
	Orientation  Orientation
	Registration Registration
	Pulse        PulseSource
	Progress     ProgressFunc
	ProgressStep uint32

	reader *Reader
}

// Offset returns the scan offset and whether it has been chosen yet.
func (s *Scan) Offset() (x, y, z float64, ok bool) {
	return s.XOff, s.YOff, s.ZOff, s.offsetSet
}

// SetOffset fixes the scan offset before the first point is assembled.
// It fails once points exist, since they are stored relative to it.
func (s *Scan) SetOffset(x, y, z float64) error {
	if len(s.Points) > 0 {
		return fmt.Errorf("%w: offset changed after points were assembled", ErrInconsistent)
	}
	s.XOff, s.YOff, s.ZOff = x, y, z
	s.offsetSet = true
	return nil
}

// World returns the absolute coordinates of p.
func (s *Scan) World(p Point) (x, y, z float64) {
	return float64(p.X) + s.XOff, float64(p.Y) + s.YOff, float64(p.Z) + s.ZOff
}

// Reading reports whether the scan file is open.
func (s *Scan) Reading() bool { return s != nil && s.reader != nil }
