package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxel.report/internal/fsutil"
	"github.com/banshee-data/voxel.report/internal/tlscan"
)

func TestGenerate(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, generate(fsys, "syn.bin", tlscan.NewSyntheticGenerator(3, 100, 200, 10, 8, 16)))

	scans := make([]*tlscan.Scan, 1)
	require.NoError(t, tlscan.NewLoader(fsys, tlscan.DefaultOptions()).ReadScan("syn.bin", 0, scans))
	defer tlscan.TidyScans(scans, 1)

	assert.Equal(t, uint32(128), scans[0].NBeams)
	assert.Positive(t, scans[0].NPoints)
	assert.True(t, scans[0].Cursor.Done())
}
