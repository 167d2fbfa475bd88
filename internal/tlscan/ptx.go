package tlscan

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/voxel.report/internal/fsutil"
)

// PTXReflScale converts PTX intensities (0..1) into reflectance units.
const PTXReflScale = 1000

/*
PTX (ASCII) layout, one scan per block:

  cols
  rows
  sx sy sz            scanner position (registered)
  ax ay az  x3        scanner axes
  m00 m10 m20 m30  x4 4x4 transform, column-major (translation on the last line)
  x y z intensity [r g b]   cols*rows rows; "0 0 0 ..." is a no-return
*/

// ReadPTX loads the first scan block of the ASCII PTX file name. Each
// return becomes a single-hit beam from the scanner origin and the embedded
// transform is kept as a MatrixRegistration applied during assembly.
func ReadPTX(fsys fsutil.FileSystem, name string, opts Options) (*Scan, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open ptx %q: %w", name, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat ptx %q: %w", name, err)
	}

	s := NewScan(name, opts)
	s.Cursor.TotSize = uint64(info.Size())

	p := &ptxParser{sc: bufio.NewScanner(f), cur: &s.Cursor}
	if err := p.parse(s); err != nil {
		Tidy(s)
		return nil, fmt.Errorf("ptx %q: %w", name, err)
	}
	return s, nil
}

// ReadPTX loads a PTX file into scans[slot], replacing and tidying any scan
// already there. On failure the slot is left nil.
func (l *Loader) ReadPTX(name string, slot int, scans []*Scan) error {
	if slot < 0 || slot >= len(scans) {
		return fmt.Errorf("%w: %d of %d", ErrBadSlot, slot, len(scans))
	}
	scans[slot] = Tidy(scans[slot])

	s, err := ReadPTX(l.FS, name, l.Options)
	if err != nil {
		scanLogf(streamOps, name, "ptx: %v", err)
		return err
	}
	s.opsf("ptx slot %d loaded %d beams, %d points (id %s)", slot, s.NBeams, s.NPoints, s.ID)
	scans[slot] = s
	return nil
}

type ptxParser struct {
	sc   *bufio.Scanner
	cur  *Cursor
	line int
}

func (p *ptxParser) next() ([]string, error) {
	for p.sc.Scan() {
		p.line++
		text := p.sc.Text()
		if err := p.cur.advance(0, uint64(len(text))+1); err != nil {
			// The final line may lack its newline.
			p.cur.TotRead = p.cur.TotSize
		}
		fields := strings.Fields(text)
		if len(fields) > 0 {
			return fields, nil
		}
	}
	if err := p.sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line %d: %w", p.line+1, err)
	}
	return nil, fmt.Errorf("%w: unexpected end of file at line %d", ErrTruncated, p.line)
}

func (p *ptxParser) floats(n int) ([]float64, error) {
	fields, err := p.next()
	if err != nil {
		return nil, err
	}
	if len(fields) < n {
		return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrInconsistent, p.line, len(fields), n)
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d field %d: %w", p.line, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func (p *ptxParser) count() (int, error) {
	v, err := p.floats(1)
	if err != nil {
		return 0, err
	}
	if v[0] < 0 || v[0] != float64(int(v[0])) {
		return 0, fmt.Errorf("%w: line %d: bad dimension %v", ErrInconsistent, p.line, v[0])
	}
	return int(v[0]), nil
}

func (p *ptxParser) parse(s *Scan) error {
	cols, err := p.count()
	if err != nil {
		return err
	}
	rows, err := p.count()
	if err != nil {
		return err
	}
	pos, err := p.floats(3)
	if err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if _, err := p.floats(3); err != nil {
			return err
		}
	}

	// Stored column-major; keep it row-major.
	m := mat.NewDense(4, 4, nil)
	for c := 0; c < 4; c++ {
		v, err := p.floats(4)
		if err != nil {
			return err
		}
		for r := 0; r < 4; r++ {
			m.Set(r, c, v[r])
		}
	}
	s.Registration = MatrixRegistration{M: m}
	s.diagf("ptx %dx%d, scanner at %.3f %.3f %.3f", cols, rows, pos[0], pos[1], pos[2])

	total := cols * rows
	batch := make([]Beam, 0, s.NRead)
	hits := make([]Hit, s.NRead)
	for i := 0; i < total; i++ {
		v, err := p.floats(4)
		if err != nil {
			return err
		}
		if len(batch) == cap(batch) {
			if err := Assemble(s, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}

		zen, az, r := CartesianToPolar(v[0], v[1], v[2])
		b := Beam{Zen: float32(zen), Az: float32(az), ShotN: uint32(i)}
		if r > 0 {
			k := len(batch)
			hits[k] = Hit{Range: float32(r), Refl: float32(v[3] * PTXReflScale)}
			b.NHits = 1
			b.Hits = hits[k : k+1 : k+1]
		}
		batch = append(batch, b)
		s.NBeams++
		if err := p.cur.advance(1, 0); err != nil {
			return err
		}
	}
	if err := Assemble(s, batch); err != nil {
		return err
	}
	s.Beams = batch
	return nil
}
