// Command tlsvoxel loads terrestrial laser scans into offset-compressed
// point clouds and prints a summary of each. Optionally it renders
// reflectance panoramas per polar binary input, either one image or a
// sweep of distance windows.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/voxel.report/internal/config"
	"github.com/banshee-data/voxel.report/internal/fsutil"
	"github.com/banshee-data/voxel.report/internal/panorama"
	"github.com/banshee-data/voxel.report/internal/security"
	"github.com/banshee-data/voxel.report/internal/tlscan"
	"github.com/banshee-data/voxel.report/internal/version"
)

type options struct {
	configPath  string
	jobs        int
	panoramaDir string
	split       bool
	verbose     bool
	trace       bool
	progress    bool
	mmap        bool
	inputs      []string
}

func parseFlags(fs *flag.FlagSet, args []string) (options, bool, error) {
	var o options
	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.StringVar(&o.configPath, "config", "", "Scan config file, .json, .yaml or .yml (default "+config.DefaultConfigPath+" if present)")
	fs.IntVar(&o.jobs, "j", runtime.NumCPU(), "Number of scans to load in parallel")
	fs.StringVar(&o.panoramaDir, "panorama", "", "Directory to write reflectance panoramas to")
	fs.BoolVar(&o.split, "split", false, "Also write panorama weight and reflectance-sum images")
	fs.BoolVar(&o.verbose, "v", false, "Log per-scan diagnostics")
	fs.BoolVar(&o.trace, "trace", false, "Log per-batch telemetry")
	fs.BoolVar(&o.progress, "p", false, "Report read progress per scan")
	fs.BoolVar(&o.progress, "progress", false, "Report read progress per scan")
	fs.BoolVar(&o.mmap, "mmap", false, "Memory-map scan files instead of buffered reads")
	if err := fs.Parse(args); err != nil {
		return o, false, err
	}
	o.inputs = fs.Args()
	if o.jobs < 1 {
		o.jobs = 1
	}
	return o, *showVersion, nil
}

func main() {
	o, showVersion, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if showVersion {
		fmt.Println(version.String("tlsvoxel"))
		return
	}
	if len(o.inputs) == 0 {
		log.Fatal("at least one scan file is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var fsys fsutil.FileSystem = fsutil.OSFileSystem{}
	if o.mmap {
		fsys = fsutil.MmapFileSystem{}
	}
	if err := run(ctx, fsys, o, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads path, or the repository defaults file when path is
// empty. Without either the built-in defaults apply.
func loadConfig(fsys fsutil.FileSystem, path string) (*config.ScanConfig, error) {
	if path == "" {
		if !fsys.Exists(config.DefaultConfigPath) {
			return config.EmptyScanConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadScanConfigFS(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// checkInputs fails fast on inputs that are missing or cannot hold a scan.
func checkInputs(fsys fsutil.FileSystem, inputs []string) error {
	for _, name := range inputs {
		info, err := fsys.Stat(name)
		if err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
		if info.IsDir() {
			return fmt.Errorf("input %s: is a directory", name)
		}
		tlscan.Diagf("input %s: %d bytes", name, info.Size())
	}
	return nil
}

func progressReporter(name string, c tlscan.Cursor) {
	tlscan.Opsf("progress %s: %5.1f%% (%d beams, %d/%d bytes)", name, 100*c.Progress(), c.POffset, c.TotRead, c.TotSize)
}

// run loads every input into its own slot, prints one summary line per
// scan in input order and releases all scans before returning.
func run(ctx context.Context, fsys fsutil.FileSystem, o options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(fsys, o.configPath)
	if err != nil {
		return err
	}

	lw := tlscan.LogWriters{Ops: stderr}
	if o.verbose {
		lw.Diag = stderr
	}
	if o.trace {
		lw.Trace = stderr
	}
	tlscan.SetLogWriters(lw)

	if err := checkInputs(fsys, o.inputs); err != nil {
		return err
	}

	opts := tlscan.OptionsFromConfig(cfg)
	if o.progress {
		opts.Progress = progressReporter
	}
	loader := tlscan.NewLoader(fsys, opts)
	scans := make([]*tlscan.Scan, len(o.inputs))
	defer tlscan.TidyScans(scans, len(scans))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.jobs)
	for i, name := range o.inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if isPTX(name) {
				return loader.ReadPTX(name, i, scans)
			}
			return loader.ReadScan(name, i, scans)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, s := range scans {
		fmt.Fprintln(stdout, tlscan.Summarize(s))
	}

	if o.panoramaDir != "" {
		pcfg := panorama.ConfigFrom(cfg)
		pcfg.Split = pcfg.Split || o.split
		return renderPanoramas(fsys, pcfg, o.inputs, o.panoramaDir, stdout)
	}
	return nil
}

// renderPanoramas writes one image per input and sweep frame, plus the
// weight and sum layers when cfg.Split is set. Sweep frames without any
// returns are skipped.
func renderPanoramas(fsys fsutil.FileSystem, cfg panorama.Config, inputs []string, dir string, stdout io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	frames := cfg.FrameConfigs()
	layers := []panorama.Layer{panorama.Mean}
	if cfg.Split {
		layers = append(layers, panorama.Weight, panorama.Sum)
	}

	for _, name := range inputs {
		if isPTX(name) {
			tlscan.Opsf("panorama: skipping %s, only polar binary scans are projected", name)
			continue
		}
		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		for i, fc := range frames {
			p, err := panorama.New(fc)
			if err != nil {
				return err
			}
			if err := p.AddFile(fsys, name); err != nil {
				return fmt.Errorf("panorama %s: %w", name, err)
			}
			stem := base
			if len(frames) > 1 {
				stem = fmt.Sprintf("%s_%03d", base, i)
				if _, _, ok := p.Range(); !ok {
					lo, hi := p.Window()
					tlscan.Opsf("panorama %s: frame %d [%g, %g) m has no returns, skipped", name, i, lo, hi)
					continue
				}
			}
			for _, l := range layers {
				file := stem
				if l != panorama.Mean {
					file += "_" + l.String()
				}
				out, err := security.OutputPath(dir, file, ".png")
				if err != nil {
					return err
				}
				if err := p.SaveLayerPNG(fsys, out, file, l); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "panorama %s: %dx%d, %d beams\n", out, p.Width, p.Height, p.Beams())
			}
		}
	}
	return nil
}

func isPTX(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".ptx")
}
