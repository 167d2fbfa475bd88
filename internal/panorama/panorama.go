// Package panorama projects the returns of a scan onto a 2D reflectance
// image: azimuth across, a conformal zenith scale down.
package panorama

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/banshee-data/voxel.report/internal/config"
	"github.com/banshee-data/voxel.report/internal/fsutil"
	"github.com/banshee-data/voxel.report/internal/tlscan"
)

// ErrInvalidConfig reports projection bounds that cannot form an image.
var ErrInvalidConfig = errors.New("panorama: invalid config")

// Config bounds the projection. Angles in degrees, distances in metres.
type Config struct {
	Width   int
	ZenMin  float64
	ZenMax  float64
	DistMin float64
	DistMax float64
	// Sigma > 0 weights returns by their horizontal distance from the
	// middle of [DistMin, DistMax).
	Sigma float64

	// Frames > 0 replaces the single distance window with a sweep of
	// Frames windows, each RangeView wide, whose near edges step evenly
	// from FromDist to ToDist.
	Frames    int
	FromDist  float64
	ToDist    float64
	RangeView float64

	// Split asks for the Weight and Sum layers alongside the mean.
	Split bool
}

// ConfigFrom reads the panorama section of cfg.
func ConfigFrom(cfg *config.ScanConfig) Config {
	c := Config{
		Width:   cfg.GetWidth(),
		ZenMin:  cfg.GetZenMin(),
		ZenMax:  cfg.GetZenMax(),
		DistMin: cfg.GetDistMin(),
		DistMax: cfg.GetDistMax(),
		Sigma:   cfg.GetSigma(),
	}
	if cfg.Sweeping() {
		c.Frames = cfg.GetFrames()
		c.FromDist = cfg.GetFromDist()
		c.ToDist = cfg.GetToDist()
		c.RangeView = cfg.GetRangeView()
	}
	c.Split = cfg.GetSplit()
	return c
}

// Validate checks that the bounds describe a non-empty image.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0:
		return fmt.Errorf("%w: width %d", ErrInvalidConfig, c.Width)
	case !(c.ZenMin > 0 && c.ZenMin < c.ZenMax && c.ZenMax < 180):
		return fmt.Errorf("%w: zenith range [%v, %v] must lie within (0, 180)", ErrInvalidConfig, c.ZenMin, c.ZenMax)
	case !(c.DistMin < c.DistMax):
		return fmt.Errorf("%w: distance range [%v, %v)", ErrInvalidConfig, c.DistMin, c.DistMax)
	case c.Sigma < 0:
		return fmt.Errorf("%w: sigma %v", ErrInvalidConfig, c.Sigma)
	case c.Frames < 0:
		return fmt.Errorf("%w: frames %d", ErrInvalidConfig, c.Frames)
	case c.Frames > 0 && !(c.RangeView > 0):
		return fmt.Errorf("%w: range view %v", ErrInvalidConfig, c.RangeView)
	case c.Frames > 0 && !(c.FromDist <= c.ToDist):
		return fmt.Errorf("%w: sweep [%v, %v]", ErrInvalidConfig, c.FromDist, c.ToDist)
	}
	return nil
}

// FrameConfigs returns one single-window config per sweep frame, or c
// itself when no sweep is configured. Each frame is rendered from its own
// pass over the scan so only one image is held at a time.
func (c Config) FrameConfigs() []Config {
	if c.Frames <= 0 {
		return []Config{c}
	}
	var step float64
	if c.Frames > 1 {
		step = (c.ToDist - c.FromDist) / float64(c.Frames-1)
	}
	out := make([]Config, c.Frames)
	for i := range out {
		f := c
		f.Frames = 0
		f.DistMin = c.FromDist + float64(i)*step
		f.DistMax = f.DistMin + c.RangeView
		out[i] = f
	}
	return out
}

// Panorama accumulates reflectance per pixel.
type Panorama struct {
	cfg    Config
	Width  int
	Height int
	YTop   float64
	YBot   float64

	distMid float64
	sum     []float64 // weighted reflectance
	weight  []float64
	beams   int
}

// New returns an empty panorama sized for cfg.
func New(cfg Config) (*Panorama, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Panorama{
		cfg:     cfg,
		Width:   cfg.Width,
		YTop:    CalculateY(cfg.Width, cfg.ZenMin),
		YBot:    CalculateY(cfg.Width, cfg.ZenMax),
		distMid: (cfg.DistMin + cfg.DistMax) / 2,
	}
	p.Height = int(math.Floor(p.YTop - p.YBot + 1))
	p.sum = make([]float64, p.Width*p.Height)
	p.weight = make([]float64, p.Width*p.Height)
	return p, nil
}

// Pixel returns the pixel a beam direction falls on. Angles in radians.
// ok is false outside the zenith bounds.
func (p *Panorama) Pixel(zen, az float64) (x, y int, ok bool) {
	zenDeg := math.Abs(zen * 180 / math.Pi)
	if zenDeg < p.cfg.ZenMin || zenDeg > p.cfg.ZenMax {
		return 0, 0, false
	}
	x = int(math.Floor(CalculateX(p.Width, az*180/math.Pi))) % p.Width
	if x < 0 {
		x += p.Width
	}
	y = int(math.Floor(p.YTop - CalculateY(p.Width, zenDeg)))
	y = min(max(y, 0), p.Height-1)
	return x, y, true
}

// AddBeam adds the returns of b lying inside the distance bounds and
// reports whether the beam landed on the image.
func (p *Panorama) AddBeam(b *tlscan.Beam) bool {
	if b.NHits == 0 {
		return false
	}
	x, y, ok := p.Pixel(float64(b.Zen), float64(b.Az))
	if !ok {
		return false
	}
	zenDeg := math.Abs(float64(b.Zen) * 180 / math.Pi)
	i := y*p.Width + x

	added := false
	for _, h := range b.Hits[:b.NHits] {
		d := DistanceFromZenithRange(zenDeg, float64(h.Range))
		if d < p.cfg.DistMin || d >= p.cfg.DistMax {
			continue
		}
		w := 1.0
		if p.cfg.Sigma > 0 {
			w = GaussianSmooth(d-p.distMid, p.cfg.Sigma)
		}
		p.sum[i] += w * float64(h.Refl)
		p.weight[i] += w
		added = true
	}
	if added {
		p.beams++
	}
	return added
}

// AddFile streams every beam of the polar binary file name into p.
func (p *Panorama) AddFile(fsys fsutil.FileSystem, name string) error {
	r, err := tlscan.Open(fsys, name, 0)
	if err != nil {
		return err
	}
	defer r.Close()

	for b, err := range r.Beams() {
		if err != nil {
			return err
		}
		p.AddBeam(b)
	}
	tlscan.Diagf("panorama: %s added, %d beams on image", name, p.beams)
	return nil
}

// Layer selects which accumulated quantity a pixel reports.
type Layer int

const (
	Mean   Layer = iota // weighted mean reflectance
	Weight              // sum of weights
	Sum                 // weighted reflectance sum
)

func (l Layer) String() string {
	switch l {
	case Mean:
		return "mean"
	case Weight:
		return "weight"
	case Sum:
		return "refl"
	}
	return fmt.Sprintf("layer(%d)", int(l))
}

// At returns the mean reflectance of a pixel, NaN when nothing fell on it.
func (p *Panorama) At(x, y int) float64 { return p.LayerAt(Mean, x, y) }

// LayerAt returns layer l of a pixel, NaN when nothing fell on it.
func (p *Panorama) LayerAt(l Layer, x, y int) float64 {
	i := y*p.Width + x
	if p.weight[i] == 0 {
		return math.NaN()
	}
	switch l {
	case Weight:
		return p.weight[i]
	case Sum:
		return p.sum[i]
	}
	return p.sum[i] / p.weight[i]
}

// Window returns the horizontal distance bounds drawn, in metres.
func (p *Panorama) Window() (lo, hi float64) { return p.cfg.DistMin, p.cfg.DistMax }

// Beams returns the number of beams that contributed to the image.
func (p *Panorama) Beams() int { return p.beams }

// Range returns the smallest and largest pixel means. ok is false for an
// empty image.
func (p *Panorama) Range() (lo, hi float64, ok bool) { return p.LayerRange(Mean) }

// LayerRange returns the extremes of layer l over non-empty pixels.
func (p *Panorama) LayerRange(l Layer) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			v := p.LayerAt(l, x, y)
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok
}

// Image normalises the pixel means to an 8-bit grey image. Empty pixels
// are black.
func (p *Panorama) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	lo, hi, ok := p.Range()
	if !ok {
		return img
	}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			img.Pix[y*img.Stride+x] = NormalizeToUint8(p.At(x, y), lo, hi)
		}
	}
	return img
}
