package tlscan

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/banshee-data/voxel.report/internal/config"
	"github.com/banshee-data/voxel.report/internal/fsutil"
)

// Options configures how scans are read and assembled.
type Options struct {
	NRead       uint32 // beams per batch
	MaxRead     uint32 // upper bound on beams held at once
	OffsetGrid  float64
	Orientation Orientation
	Pulse       PulseSource

	// Progress, when set, is called from the read loop each time another
	// ProgressStep beams have been consumed, and once at the end.
	Progress     ProgressFunc
	ProgressStep uint32
}

// ProgressFunc receives the cursor of the scan file name as it is read.
type ProgressFunc func(name string, c Cursor)

// DefaultProgressStep is the beam interval between progress reports.
const DefaultProgressStep = 100000

// OptionsFromConfig builds Options from a loaded ScanConfig.
func OptionsFromConfig(cfg *config.ScanConfig) Options {
	return Options{
		NRead:      uint32(cfg.GetBatchSize()),
		MaxRead:    uint32(cfg.GetMaxRead()),
		OffsetGrid: cfg.GetOffsetGrid(),
		Orientation: Orientation{
			Z: cfg.GetRotateZDeg() * math.Pi / 180,
			X: cfg.GetRotateXDeg() * math.Pi / 180,
		},
		Pulse: ConstantPulse{
			Sigma:  float32(cfg.GetPulseSigma()),
			Thresh: float32(cfg.GetPulseThreshold()),
		},
	}
}

// DefaultOptions returns the options implied by an empty ScanConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(config.EmptyScanConfig())
}

// NewScan returns an empty scan ready to be bound to a file.
// NRead is clamped to MaxRead.
func NewScan(name string, opts Options) *Scan {
	def := DefaultOptions()
	if opts.MaxRead == 0 {
		opts.MaxRead = def.MaxRead
	}
	if opts.NRead == 0 {
		opts.NRead = def.NRead
	}
	if opts.NRead > opts.MaxRead {
		opts.NRead = opts.MaxRead
	}
	if opts.Pulse == nil {
		opts.Pulse = def.Pulse
	}
	if opts.ProgressStep == 0 {
		opts.ProgressStep = DefaultProgressStep
	}
	return &Scan{
		ID:           uuid.New(),
		Name:         name,
		NRead:        opts.NRead,
		MaxRead:      opts.MaxRead,
		OffsetGrid:   opts.OffsetGrid,
		Orientation:  opts.Orientation,
		Registration: PolarRegistration{},
		Pulse:        opts.Pulse,
		Progress:     opts.Progress,
		ProgressStep: opts.ProgressStep,
	}
}

// OpenScan creates a scan bound to the polar binary file name. The caller
// drives ReadBatch and Assemble and must release the scan with Tidy.
func OpenScan(fsys fsutil.FileSystem, name string, opts Options) (*Scan, error) {
	s := NewScan(name, opts)
	r, err := Open(fsys, name, BufferSizeFor(s.NRead))
	if err != nil {
		Tidy(s)
		return nil, err
	}
	s.reader = r
	s.NBeams = r.Header().NBeams
	s.Cursor = r.Cursor()
	return s, nil
}

// Tidy closes the scan's file and drops its beams, points and
// registration. It returns nil so callers can write s = Tidy(s). Tidying
// nil or an already tidied scan does nothing.
func Tidy(s *Scan) *Scan {
	if s == nil {
		return nil
	}
	if s.reader != nil {
		if err := s.reader.Close(); err != nil {
			s.opsf("close failed: %v", err)
		}
		s.reader = nil
	}
	s.Beams = nil
	s.Points = nil
	s.Registration = nil
	s.NBeams = 0
	s.NPoints = 0
	return nil
}

// TidyScans tidies the first n scans of the collection and returns nil.
// n is clamped to the collection length.
func TidyScans(scans []*Scan, n int) []*Scan {
	if n > len(scans) {
		n = len(scans)
	}
	for i := 0; i < n; i++ {
		scans[i] = Tidy(scans[i])
	}
	return nil
}

// Loader reads whole scans into slots of a caller-owned collection.
type Loader struct {
	FS      fsutil.FileSystem
	Options Options
}

// NewLoader returns a Loader reading from fsys. A nil fsys reads from the
// operating system.
func NewLoader(fsys fsutil.FileSystem, opts Options) *Loader {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Loader{FS: fsys, Options: opts}
}

// ReadScan loads the polar binary file name into scans[slot], reading and
// assembling batch by batch until the end of the file. Any scan already in
// the slot is tidied first. On return the file is closed. On failure the
// partial scan is tidied and the slot left nil.
func (l *Loader) ReadScan(name string, slot int, scans []*Scan) error {
	if slot < 0 || slot >= len(scans) {
		return fmt.Errorf("%w: %d of %d", ErrBadSlot, slot, len(scans))
	}
	scans[slot] = Tidy(scans[slot])

	s, err := OpenScan(l.FS, name, l.Options)
	if err != nil {
		scanLogf(streamOps, name, "%v", err)
		return err
	}

	if err := fill(s); err != nil {
		scanLogf(streamOps, name, "%v", err)
		Tidy(s)
		return err
	}

	s.opsf("slot %d loaded %d beams, %d points (id %s)", slot, s.NBeams, s.NPoints, s.ID)
	scans[slot] = s
	return nil
}

// fill runs the read/assemble loop to the end of the file and closes it.
func fill(s *Scan) error {
	batch := int(s.NRead)
	step := max(s.ProgressStep, 1)
	var reported uint32
	for {
		n, err := ReadBatch(s, batch)
		if err != nil {
			return err
		}
		if err := Assemble(s, s.Beams[:n]); err != nil {
			return fmt.Errorf("scan %q: %w", s.Name, err)
		}
		if n < batch {
			break
		}
		if s.Progress != nil && s.Cursor.POffset/step > reported/step {
			reported = s.Cursor.POffset
			s.Progress(s.Name, s.Cursor)
		}
	}
	if s.Cursor.POffset != s.NBeams {
		return fmt.Errorf("%w: scan %q read %d of %d beams", ErrInconsistent, s.Name, s.Cursor.POffset, s.NBeams)
	}
	if s.Progress != nil && (reported != s.Cursor.POffset || reported == 0) {
		s.Progress(s.Name, s.Cursor)
	}

	err := s.reader.Close()
	s.reader = nil
	if err != nil {
		return fmt.Errorf("failed to close scan %q: %w", s.Name, err)
	}
	return nil
}
