package tlscan_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxel.report/internal/fsutil"
	"github.com/banshee-data/voxel.report/internal/tlscan"
)

var ptxLines = []string{
	"2",
	"2",
	"100 200 10",
	"1 0 0",
	"0 1 0",
	"0 0 1",
	"1 0 0 0",
	"0 1 0 0",
	"0 0 1 0",
	"100 200 10 1",
	"1 0 0 0.5",
	"0 2 0 0.5",
	"0 0 3 0.5",
	"0 0 0 0",
}

func writePTX(t *testing.T, fsys *fsutil.MemoryFileSystem, name string, lines []string) {
	t.Helper()
	require.NoError(t, fsys.WriteFile(name, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func TestReadPTX(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writePTX(t, fsys, "scan.ptx", ptxLines)

	s, err := tlscan.ReadPTX(fsys, "scan.ptx", openOpts(3, 100))
	require.NoError(t, err)
	defer tlscan.Tidy(s)

	assert.Equal(t, uint32(4), s.NBeams)
	assert.Equal(t, uint32(3), s.NPoints)
	assert.Equal(t, uint32(4), s.Cursor.POffset)
	assert.True(t, s.Cursor.Done())
	assert.IsType(t, tlscan.MatrixRegistration{}, s.Registration)
	assert.Zero(t, fsys.OpenHandles("scan.ptx"))

	want := [][3]float64{{101, 200, 10}, {100, 202, 10}, {100, 200, 13}}
	require.Len(t, s.Points, len(want))
	for i, p := range s.Points {
		x, y, z := s.World(p)
		assert.InDelta(t, want[i][0], x, 1e-4, "point %d x", i)
		assert.InDelta(t, want[i][1], y, 1e-4, "point %d y", i)
		assert.InDelta(t, want[i][2], z, 1e-4, "point %d z", i)
		assert.Equal(t, uint16(500), p.Refl)
		assert.Equal(t, float32(0), p.Gap)
	}
}

func TestReadPTX_NoTrailingNewline(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("scan.ptx", []byte(strings.Join(ptxLines, "\n")), 0o644))

	s, err := tlscan.ReadPTX(fsys, "scan.ptx", tlscan.DefaultOptions())
	require.NoError(t, err)
	defer tlscan.Tidy(s)
	assert.Equal(t, uint32(3), s.NPoints)
	assert.True(t, s.Cursor.Done())
}

func TestReadPTX_Truncated(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writePTX(t, fsys, "cut.ptx", ptxLines[:len(ptxLines)-2])

	s, err := tlscan.ReadPTX(fsys, "cut.ptx", tlscan.DefaultOptions())
	assert.Nil(t, s)
	assert.ErrorIs(t, err, tlscan.ErrTruncated)
	assert.Zero(t, fsys.OpenHandles("cut.ptx"))
}

func TestReadPTX_BadHeader(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	lines := append([]string{"-2"}, ptxLines[1:]...)
	writePTX(t, fsys, "bad.ptx", lines)

	_, err := tlscan.ReadPTX(fsys, "bad.ptx", tlscan.DefaultOptions())
	assert.ErrorIs(t, err, tlscan.ErrInconsistent)
}

func TestLoader_ReadPTX(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writePTX(t, fsys, "scan.ptx", ptxLines)
	writePTX(t, fsys, "cut.ptx", ptxLines[:5])

	l := tlscan.NewLoader(fsys, tlscan.DefaultOptions())
	scans := make([]*tlscan.Scan, 1)
	require.NoError(t, l.ReadPTX("scan.ptx", 0, scans))
	assert.Equal(t, uint32(3), scans[0].NPoints)

	assert.Error(t, l.ReadPTX("cut.ptx", 0, scans))
	assert.Nil(t, scans[0])
	assert.ErrorIs(t, l.ReadPTX("scan.ptx", 1, scans), tlscan.ErrBadSlot)
}

func TestReadPTX_RotatedTransform(t *testing.T) {
	// 90 degrees about Z then a 5 m shift along X, written column by column.
	lines := []string{
		"2",
		"1",
		"5 0 0",
		"0 1 0",
		"-1 0 0",
		"0 0 1",
		"0 1 0 0",
		"-1 0 0 0",
		"0 0 1 0",
		"5 0 0 1",
		"1 0 0 0.25",
		"0 2 0 0.25",
	}
	fsys := fsutil.NewMemoryFileSystem()
	writePTX(t, fsys, "rot.ptx", lines)

	s, err := tlscan.ReadPTX(fsys, "rot.ptx", tlscan.DefaultOptions())
	require.NoError(t, err)
	defer tlscan.Tidy(s)

	assert.Equal(t, uint32(2), s.Cursor.POffset)
	want := [][3]float64{{5, 1, 0}, {3, 0, 0}}
	require.Len(t, s.Points, len(want))
	for i, p := range s.Points {
		x, y, z := s.World(p)
		assert.InDelta(t, want[i][0], x, 1e-4, "point %d x", i)
		assert.InDelta(t, want[i][1], y, 1e-4, "point %d y", i)
		assert.InDelta(t, want[i][2], z, 1e-4, "point %d z", i)
		assert.Equal(t, uint16(250), p.Refl)
	}
}
