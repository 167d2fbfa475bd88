package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_scan.bin") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_RoundTrip(t *testing.T) {
	fsys := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "scan.bin")

	w, err := fsys.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("size = %d, want 4", info.Size())
	}

	f, err := fsys.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(data) != 4 || data[3] != 4 {
		t.Errorf("unexpected content %v", data)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	want := []byte("polar beams")
	if err := mfs.WriteFile("/scan.bin", want, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := mfs.ReadFile("/scan.bin")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("expected %q, got %q", want, got)
	}

	// Mutating the returned slice must not change the stored file.
	got[0] = 'X'
	again, _ := mfs.ReadFile("/scan.bin")
	if again[0] != 'p' {
		t.Error("ReadFile returned shared backing storage")
	}
}

func TestMemoryFileSystem_CreateAndStat(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/created.bin")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.Write([]byte("abc"))
	w.Write([]byte("de"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := mfs.Stat("/created.bin")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("size = %d, want 5", info.Size())
	}
	if info.Name() != "created.bin" {
		t.Errorf("name = %q, want created.bin", info.Name())
	}
	if info.IsDir() {
		t.Error("file reported as directory")
	}
}

func TestMemoryFileSystem_OpenMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.Open("/missing.bin")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	_, err = mfs.Stat("/missing.bin")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist from Stat, got %v", err)
	}
	if mfs.Exists("/missing.bin") {
		t.Error("missing file reported as existing")
	}
}

func TestMemoryFileSystem_OpenHandles(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/scan.bin", []byte("0123456789"), 0o644)

	f, err := mfs.Open("/scan.bin")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if n := mfs.OpenHandles("/scan.bin"); n != 1 {
		t.Errorf("open handles = %d, want 1", n)
	}

	buf := make([]byte, 4)
	n, err := f.Read(buf)
	if err != nil || n != 4 {
		t.Fatalf("Read = %d, %v", n, err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n := mfs.OpenHandles("/scan.bin"); n != 0 {
		t.Errorf("open handles = %d after close, want 0", n)
	}

	if _, err := f.Read(buf); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("read after close = %v, want ErrClosed", err)
	}
	if err := f.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("double close = %v, want ErrClosed", err)
	}
}

func TestMemoryFileSystem_ReadToEOF(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/scan.bin", []byte("abc"), 0o644)

	f, _ := mfs.Open("/scan.bin")
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("got %q", data)
	}

	info, err := f.Stat()
	if err != nil || info.Size() != 3 {
		t.Errorf("Stat = %v, %v", info, err)
	}
}
