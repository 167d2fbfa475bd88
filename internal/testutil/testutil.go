// Package testutil provides shared test fixtures for scan files.
package testutil

import (
	"bytes"
	"testing"

	"github.com/banshee-data/voxel.report/internal/fsutil"
	"github.com/banshee-data/voxel.report/internal/tlscan"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// EncodeScan returns the polar binary encoding of beams.
func EncodeScan(t *testing.T, beams []tlscan.Beam) []byte {
	t.Helper()
	var buf bytes.Buffer
	AssertNoError(t, tlscan.EncodeScan(&buf, beams))
	return buf.Bytes()
}

// WriteScan encodes beams into name on an in-memory filesystem.
func WriteScan(t *testing.T, fsys *fsutil.MemoryFileSystem, name string, beams []tlscan.Beam) {
	t.Helper()
	AssertNoError(t, fsys.WriteFile(name, EncodeScan(t, beams), 0o644))
}

// SyntheticScan writes a deterministic synthetic scan of zenSteps*azSteps
// beams to name and returns the beams.
func SyntheticScan(t *testing.T, fsys *fsutil.MemoryFileSystem, name string, seed int64, zenSteps, azSteps int) []tlscan.Beam {
	t.Helper()
	beams := tlscan.NewSyntheticGenerator(seed, 1234.5, -678.25, 90.125, zenSteps, azSteps).Beams()
	WriteScan(t, fsys, name, beams)
	return beams
}

// SingleHitBeam builds a one-hit beam from the origin.
func SingleHitBeam(shot uint32, zen, az, r, refl float32) tlscan.Beam {
	return tlscan.Beam{
		Zen:   zen,
		Az:    az,
		ShotN: shot,
		NHits: 1,
		Hits:  []tlscan.Hit{{Range: r, Refl: refl}},
	}
}

// TotalHits sums the hit counts of beams.
func TotalHits(beams []tlscan.Beam) int {
	n := 0
	for _, b := range beams {
		n += int(b.NHits)
	}
	return n
}
