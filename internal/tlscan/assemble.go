package tlscan

import (
	"fmt"
	"math"
	"slices"
)

// PulseSource supplies the waveform parameters for one hit: the return
// pulse width and the detection threshold fed to DetermineGaussSep.
type PulseSource interface {
	PulseParams(b *Beam, hit int) (sigma, thresh float32)
}

// ConstantPulse uses the same calibration for every hit.
type ConstantPulse struct {
	Sigma  float32 // metres
	Thresh float32
}

func (c ConstantPulse) PulseParams(*Beam, int) (float32, float32) {
	return c.Sigma, c.Thresh
}

// Assemble expands every hit of beams into a Point appended to s.Points.
//
// The scan offset is chosen from the first beam with hits if it has not been
// set. A beam declaring more hits than it carries aborts assembly with
// ErrInconsistent before any of its points are appended; points from
// earlier beams are kept.
func Assemble(s *Scan, beams []Beam) error {
	var (
		gaps   []float32
		origin [3]float64
	)
	for i := range beams {
		b := &beams[i]
		nh := int(b.NHits)
		if nh > len(b.Hits) {
			return fmt.Errorf("%w: beam %d declares %d hits but carries %d",
				ErrInconsistent, b.ShotN, nh, len(b.Hits))
		}
		if nh == 0 {
			continue
		}

		origin = [3]float64{b.X, b.Y, b.Z}
		s.toScanFrame(&origin)
		if !s.offsetSet {
			s.chooseOffset(origin)
		}

		gaps = beamGaps(s.pulse(), b, nh, gaps)
		s.Points = slices.Grow(s.Points, nh)

		zen, az := float64(b.Zen), float64(b.Az)
		for j := 0; j < nh; j++ {
			h := b.Hits[j]
			dx, dy, dz := PolarToCartesian(zen, az, float64(h.Range))
			v := [3]float64{b.X + dx, b.Y + dy, b.Z + dz}
			s.toScanFrame(&v)

			s.Points = append(s.Points, Point{
				Bin:   BinUnassigned,
				X:     float32(v[0] - s.XOff),
				Y:     float32(v[1] - s.YOff),
				Z:     float32(v[2] - s.ZOff),
				Gap:   gaps[j],
				R:     h.Range,
				Refl:  reflToUint16(h.Refl),
				HitN:  s.NPoints,
				NHits: b.NHits,
			})
			s.NPoints++
		}
	}
	return nil
}

// toScanFrame applies the scan orientation and registration to v.
func (s *Scan) toScanFrame(v *[3]float64) {
	if !s.Orientation.IsZero() {
		RotateZ(v, s.Orientation.Z)
		RotateX(v, s.Orientation.X)
	}
	if reg, ok := s.Registration.(MatrixRegistration); ok {
		applyMatrix(reg, v)
	}
}

// chooseOffset snaps origin down to the offset grid so that every point
// near the scanner stays small enough for float32.
func (s *Scan) chooseOffset(origin [3]float64) {
	grid := s.OffsetGrid
	if !(grid > 0) {
		grid = 100
	}
	snap := func(v float64) float64 { return math.Floor(v/grid) * grid }
	s.XOff, s.YOff, s.ZOff = snap(origin[0]), snap(origin[1]), snap(origin[2])
	s.offsetSet = true
	s.diagf("offset %.1f %.1f %.1f", s.XOff, s.YOff, s.ZOff)
}

func (s *Scan) pulse() PulseSource {
	if s.Pulse == nil {
		return ConstantPulse{Sigma: 0.5, Thresh: 0.01}
	}
	return s.Pulse
}

// beamGaps returns the gap fraction for each of the first nh hits of b.
//
// Hits closer to their predecessor than the Gaussian separation belong to
// one resolvable return, whichever order the ranges were recorded in. The gap of a hit is the share of the beam's
// returned energy lying beyond its return. A hit whose separation is
// undefined stands alone and gets GapUndefined.
func beamGaps(pulse PulseSource, b *Beam, nh int, out []float32) []float32 {
	out = slices.Grow(out[:0], nh)[:nh]

	var total float64
	for j := 0; j < nh; j++ {
		total += energy(b.Hits[j].Refl)
	}
	if !(total > 0) {
		for j := range out {
			out[j] = GapUndefined
		}
		return out
	}

	// out holds each hit's separation until it is overwritten by its gap.
	for j := 0; j < nh; j++ {
		sigma, thresh := pulse.PulseParams(b, j)
		out[j] = DetermineGaussSep(sigma, thresh)
	}

	var cum float64
	for start := 0; start < nh; {
		end := start + 1
		defined := out[start] != SepUndefined
		if defined {
			for end < nh && out[end] != SepUndefined &&
				math.Abs(float64(b.Hits[end].Range-b.Hits[end-1].Range)) < float64(out[end]) {
				end++
			}
		}

		for j := start; j < end; j++ {
			cum += energy(b.Hits[j].Refl)
		}
		gap := GapUndefined
		if defined {
			gap = float32(math.Max(0, math.Min(1, 1-cum/total)))
		}
		for j := start; j < end; j++ {
			out[j] = gap
		}
		start = end
	}
	return out
}

func energy(refl float32) float64 {
	if !(refl > 0) || math.IsInf(float64(refl), 0) {
		return 0
	}
	return float64(refl)
}

func reflToUint16(refl float32) uint16 {
	switch {
	case !(refl > 0):
		return 0
	case refl >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(math.Round(float64(refl)))
}
