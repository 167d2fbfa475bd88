package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestMmapFileSystem_Read(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.bin")
	want := []byte("polar beams and their hits")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	var fsys FileSystem = MmapFileSystem{}
	f, err := fsys.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	info, err := f.Stat()
	if err != nil || info.Size() != int64(len(want)) {
		t.Fatalf("Stat = %v, %v", info, err)
	}

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("read %q, want %q", got, want)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("second Close = %v, want fs.ErrClosed", err)
	}
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Read after Close = %v, want fs.ErrClosed", err)
	}
}

func TestMmapFileSystem_EmptyAndMissing(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	fsys := MmapFileSystem{}
	f, err := fsys.Open(empty)
	if err != nil {
		t.Fatalf("Open empty: %v", err)
	}
	n, err := f.Read(make([]byte, 8))
	if n != 0 || err != io.EOF {
		t.Errorf("Read empty = %d, %v", n, err)
	}
	f.Close()

	if _, err := fsys.Open(filepath.Join(dir, "missing.bin")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open missing = %v, want fs.ErrNotExist", err)
	}
	if !fsys.Exists(empty) {
		t.Error("Exists should fall through to the OS")
	}
}
