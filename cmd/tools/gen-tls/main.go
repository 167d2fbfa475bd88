// Command gen-tls writes a synthetic polar binary scan for testing.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/voxel.report/internal/fsutil"
	"github.com/banshee-data/voxel.report/internal/tlscan"
)

func main() {
	output := flag.String("o", "synthetic.bin", "output path")
	zenSteps := flag.Int("zen", 360, "zenith steps")
	azSteps := flag.Int("az", 720, "azimuth steps")
	seed := flag.Int64("seed", 1, "random seed")
	x := flag.Float64("x", 512345.0, "scanner easting")
	y := flag.Float64("y", 6123456.0, "scanner northing")
	z := flag.Float64("z", 120.0, "scanner height")
	flag.Parse()

	gen := tlscan.NewSyntheticGenerator(*seed, *x, *y, *z, *zenSteps, *azSteps)
	n := gen.Len()
	if err := generate(fsutil.OSFileSystem{}, *output, gen); err != nil {
		log.Fatal(err)
	}
	log.Printf("✓ Created: %s (%d beams)", *output, n)
}

// generate writes the generator's raster to name. The raster is built in
// memory first since the header declares the final file size.
func generate(fsys fsutil.FileSystem, name string, gen *tlscan.SyntheticGenerator) error {
	beams := gen.Beams()
	f, err := fsys.Create(name)
	if err != nil {
		return err
	}
	w, err := tlscan.NewWriter(f, uint32(len(beams)), tlscan.EncodedSize(beams))
	if err != nil {
		f.Close()
		return err
	}
	for i := range beams {
		if err := w.WriteBeam(&beams[i]); err != nil {
			f.Close()
			return err
		}
		if (i+1)%100000 == 0 {
			log.Printf("%d/%d beams", i+1, len(beams))
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
