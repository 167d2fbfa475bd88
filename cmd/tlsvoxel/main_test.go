package main

import (
	"bytes"
	"context"
	"flag"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxel.report/internal/config"
	"github.com/banshee-data/voxel.report/internal/fsutil"
	"github.com/banshee-data/voxel.report/internal/testutil"
	"github.com/banshee-data/voxel.report/internal/tlscan"
)

func TestParseFlags(t *testing.T) {
	flags := flag.NewFlagSet("tlsvoxel", flag.ContinueOnError)
	o, showVersion, err := parseFlags(flags, []string{"-j", "0", "-v", "-mmap", "-p", "-split", "-panorama", "out", "a.bin", "b.ptx"})
	require.NoError(t, err)
	assert.False(t, showVersion)
	assert.Equal(t, 1, o.jobs)
	assert.True(t, o.verbose)
	assert.True(t, o.mmap)
	assert.True(t, o.progress)
	assert.True(t, o.split)
	assert.Equal(t, "out", o.panoramaDir)
	assert.Equal(t, []string{"a.bin", "b.ptx"}, o.inputs)
	assert.Contains(t, flags.Lookup("config").Usage, ".yaml or .yml")

	flags = flag.NewFlagSet("tlsvoxel", flag.ContinueOnError)
	_, showVersion, err = parseFlags(flags, []string{"-version"})
	require.NoError(t, err)
	assert.True(t, showVersion)
}

func TestRun_LoadsAllInputs(t *testing.T) {
	t.Cleanup(func() { tlscan.SetLogWriters(tlscan.LogWriters{}) })
	fsys := fsutil.NewMemoryFileSystem()
	names := []string{"a.bin", "b.bin", "c.bin"}
	for i, name := range names {
		testutil.SyntheticScan(t, fsys, name, int64(i), 6, 12)
	}

	var stdout, stderr bytes.Buffer
	o := options{jobs: 2, inputs: names}
	require.NoError(t, run(context.Background(), fsys, o, &stdout, &stderr))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	for i, name := range names {
		assert.True(t, strings.HasPrefix(lines[i], name+": 72 beams"), lines[i])
		assert.Zero(t, fsys.OpenHandles(name))
	}
	assert.Contains(t, stderr.String(), "slot 2 loaded")
}

func TestRun_Progress(t *testing.T) {
	t.Cleanup(func() { tlscan.SetLogWriters(tlscan.LogWriters{}) })
	fsys := fsutil.NewMemoryFileSystem()
	testutil.SyntheticScan(t, fsys, "a.bin", 1, 6, 12)

	var stdout, stderr bytes.Buffer
	o := options{jobs: 1, progress: true, inputs: []string{"a.bin"}}
	require.NoError(t, run(context.Background(), fsys, o, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "progress a.bin: 100.0% (72 beams")

	stderr.Reset()
	o.progress = false
	require.NoError(t, run(context.Background(), fsys, o, &stdout, &stderr))
	assert.NotContains(t, stderr.String(), "progress")
}

func TestRun_Panorama(t *testing.T) {
	t.Cleanup(func() { tlscan.SetLogWriters(tlscan.LogWriters{}) })
	fsys := fsutil.NewMemoryFileSystem()
	testutil.SyntheticScan(t, fsys, "plot.bin", 9, 18, 36)
	require.NoError(t, fsys.WriteFile("scan.yaml", []byte("panorama:\n  width: 180\n"), 0o644))

	var stdout, stderr bytes.Buffer
	o := options{jobs: 1, configPath: "scan.yaml", inputs: []string{"plot.bin"}, panoramaDir: "out"}
	require.NoError(t, run(context.Background(), fsys, o, &stdout, &stderr))

	assert.True(t, fsys.Exists("out/plot.png"))
	assert.False(t, fsys.Exists("out/plot_weight.png"))
	assert.Contains(t, stdout.String(), "panorama out/plot.png: 180x54")
}

func TestRun_PanoramaDefaultConfigFile(t *testing.T) {
	t.Cleanup(func() { tlscan.SetLogWriters(tlscan.LogWriters{}) })
	fsys := fsutil.NewMemoryFileSystem()
	testutil.SyntheticScan(t, fsys, "plot.bin", 9, 18, 36)
	require.NoError(t, fsys.WriteFile(config.DefaultConfigPath, []byte(`{"panorama": {"width": 180}}`), 0o644))

	var stdout, stderr bytes.Buffer
	o := options{jobs: 1, split: true, inputs: []string{"plot.bin"}, panoramaDir: "out"}
	require.NoError(t, run(context.Background(), fsys, o, &stdout, &stderr))

	for _, name := range []string{"out/plot.png", "out/plot_weight.png", "out/plot_refl.png"} {
		assert.True(t, fsys.Exists(name), name)
		assert.Contains(t, stdout.String(), "panorama "+name+": 180x54")
	}
}

func TestRun_PanoramaSweep(t *testing.T) {
	t.Cleanup(func() { tlscan.SetLogWriters(tlscan.LogWriters{}) })
	fsys := fsutil.NewMemoryFileSystem()
	testutil.SyntheticScan(t, fsys, "plot.bin", 9, 18, 36)
	cfg := `{"panorama": {"width": 180, "from_dist": 0, "to_dist": 10, "frames": 3, "range_view": 5}}`
	require.NoError(t, fsys.WriteFile("sweep.json", []byte(cfg), 0o644))

	var stdout, stderr bytes.Buffer
	o := options{jobs: 1, configPath: "sweep.json", inputs: []string{"plot.bin"}, panoramaDir: "out"}
	require.NoError(t, run(context.Background(), fsys, o, &stdout, &stderr))

	// Ground returns land in the first two windows.
	assert.True(t, fsys.Exists("out/plot_000.png"))
	assert.True(t, fsys.Exists("out/plot_001.png"))
	assert.False(t, fsys.Exists("out/plot.png"))
	assert.Zero(t, fsys.OpenHandles("plot.bin"))
}

func TestRun_MissingInput(t *testing.T) {
	t.Cleanup(func() { tlscan.SetLogWriters(tlscan.LogWriters{}) })
	fsys := fsutil.NewMemoryFileSystem()
	testutil.SyntheticScan(t, fsys, "a.bin", 1, 4, 4)

	var stdout, stderr bytes.Buffer
	o := options{jobs: 1, inputs: []string{"a.bin", "gone.bin"}}
	err := run(context.Background(), fsys, o, &stdout, &stderr)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorContains(t, err, "input gone.bin")
	assert.Zero(t, fsys.OpenHandles("a.bin"))
}

func TestRun_FailsOnBadInput(t *testing.T) {
	t.Cleanup(func() { tlscan.SetLogWriters(tlscan.LogWriters{}) })
	fsys := fsutil.NewMemoryFileSystem()
	testutil.SyntheticScan(t, fsys, "good.bin", 1, 4, 4)
	require.NoError(t, fsys.WriteFile("bad.bin", []byte{1, 2}, 0o644))

	var stdout, stderr bytes.Buffer
	o := options{jobs: 2, inputs: []string{"good.bin", "bad.bin"}}
	err := run(context.Background(), fsys, o, &stdout, &stderr)
	assert.ErrorIs(t, err, tlscan.ErrTruncated)
	assert.Empty(t, stdout.String())
	assert.Zero(t, fsys.OpenHandles("good.bin"))
}

func TestRun_BadConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	o := options{jobs: 1, configPath: "scan.yaml", inputs: []string{"a.bin"}}
	assert.Error(t, run(context.Background(), fsutil.NewMemoryFileSystem(), o, &stdout, &stderr))
}
