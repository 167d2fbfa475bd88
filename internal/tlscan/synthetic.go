package tlscan

import (
	"math"
	"math/rand"
)

// SyntheticGenerator produces a raster of beams resembling a scan of a
// forest plot: a ground plane below the scanner and scattered canopy
// returns above it. Output is deterministic for a given seed.
type SyntheticGenerator struct {
	// Scanner position
	X, Y, Z float64
	// Raster resolution
	ZenSteps int
	AzSteps  int
	// Fraction of upward beams that hit canopy.
	CanopyCover float64
	// MaxHits caps the returns per beam.
	MaxHits int

	rng  *rand.Rand
	shot uint32
}

// NewSyntheticGenerator returns a generator for a zenSteps x azSteps raster
// from a scanner at (x, y, z).
func NewSyntheticGenerator(seed int64, x, y, z float64, zenSteps, azSteps int) *SyntheticGenerator {
	return &SyntheticGenerator{
		X:           x,
		Y:           y,
		Z:           z,
		ZenSteps:    zenSteps,
		AzSteps:     azSteps,
		CanopyCover: 0.6,
		MaxHits:     4,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Len returns the number of beams in the raster.
func (g *SyntheticGenerator) Len() int { return g.ZenSteps * g.AzSteps }

// Done reports whether the raster is exhausted.
func (g *SyntheticGenerator) Done() bool { return int(g.shot) >= g.Len() }

// NextBeam returns the next beam of the raster, sweeping zenith within
// each azimuth column.
func (g *SyntheticGenerator) NextBeam() Beam {
	shot := g.shot
	g.shot++

	col := int(shot) / g.ZenSteps
	row := int(shot) % g.ZenSteps
	zen := (float64(row) + 0.5) * math.Pi / float64(g.ZenSteps)
	az := (float64(col)+0.5)*2*math.Pi/float64(g.AzSteps) - math.Pi

	b := Beam{
		Zen:   float32(zen),
		Az:    float32(az),
		X:     g.X,
		Y:     g.Y,
		Z:     g.Z,
		ShotN: shot,
	}

	var ranges []float32
	if cosZen := math.Cos(zen); cosZen < -0.05 {
		// Downward: ground 1.5 m below the scanner.
		ranges = append(ranges, float32(-1.5/cosZen))
	} else if g.rng.Float64() < g.CanopyCover {
		r := 2 + g.rng.Float64()*10
		n := 1 + g.rng.Intn(g.MaxHits)
		for i := 0; i < n; i++ {
			ranges = append(ranges, float32(r))
			r += 0.2 + g.rng.Float64()*3
		}
	}

	b.Hits = make([]Hit, len(ranges))
	for i, r := range ranges {
		b.Hits[i] = Hit{Range: r, Refl: float32(200 + g.rng.Float64()*800)}
	}
	b.NHits = uint8(len(b.Hits))
	return b
}

// Beams returns the whole raster.
func (g *SyntheticGenerator) Beams() []Beam {
	out := make([]Beam, 0, g.Len()-int(g.shot))
	for !g.Done() {
		out = append(out, g.NextBeam())
	}
	return out
}
