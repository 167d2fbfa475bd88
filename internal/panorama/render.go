package panorama

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/voxel.report/internal/fsutil"
)

// grid adapts one layer of a Panorama to plotter.GridXYZ with row 0 at
// the top.
type grid struct {
	p     *Panorama
	layer Layer
}

func (g grid) Dims() (c, r int)   { return g.p.Width, g.p.Height }
func (g grid) Z(c, r int) float64 { return g.p.LayerAt(g.layer, c, g.p.Height-1-r) }
func (g grid) X(c int) float64    { return float64(c) }
func (g grid) Y(r int) float64    { return float64(r) }

// Plot returns a heat map of the pixel means.
func (p *Panorama) Plot(title string) (*plot.Plot, error) { return p.PlotLayer(title, Mean) }

// PlotLayer returns a heat map of layer l.
func (p *Panorama) PlotLayer(title string, l Layer) (*plot.Plot, error) {
	lo, hi, ok := p.LayerRange(l)
	if !ok {
		return nil, fmt.Errorf("panorama %q: no returns inside the projection bounds", title)
	}

	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "Azimuth (px)"
	pl.Y.Label.Text = "Zenith (px)"

	hm := plotter.NewHeatMap(grid{p: p, layer: l}, palette.Heat(64, 1))
	hm.Min, hm.Max = lo, hi
	if hi == lo {
		hm.Max = lo + 1
	}
	hm.NaN = color.Black
	pl.Add(hm)
	return pl, nil
}

// WritePNG renders the heat map as a PNG of the given size to w.
func (p *Panorama) WritePNG(w io.Writer, title string, width, height vg.Length) error {
	return p.WriteLayerPNG(w, title, Mean, width, height)
}

// WriteLayerPNG renders layer l as a PNG of the given size to w.
func (p *Panorama) WriteLayerPNG(w io.Writer, title string, l Layer, width, height vg.Length) error {
	pl, err := p.PlotLayer(title, l)
	if err != nil {
		return err
	}
	wt, err := pl.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render panorama: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write panorama: %w", err)
	}
	return nil
}

// SavePNG renders the heat map to the file name on fsys, sized to keep the
// image's aspect ratio.
func (p *Panorama) SavePNG(fsys fsutil.FileSystem, name, title string) error {
	return p.SaveLayerPNG(fsys, name, title, Mean)
}

// SaveLayerPNG is SavePNG for layer l.
func (p *Panorama) SaveLayerPNG(fsys fsutil.FileSystem, name, title string, l Layer) error {
	f, err := fsys.Create(name)
	if err != nil {
		return fmt.Errorf("create panorama %q: %w", name, err)
	}
	width := 14 * vg.Inch
	height := width * vg.Length(p.Height) / vg.Length(p.Width)
	if height < 2*vg.Inch {
		height = 2 * vg.Inch
	}
	if err := p.WriteLayerPNG(f, title, l, width, height); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close panorama %q: %w", name, err)
	}
	return nil
}
