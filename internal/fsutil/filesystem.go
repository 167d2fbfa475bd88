// Package fsutil abstracts the filesystem used to open scan files so that
// readers can be exercised against in-memory fixtures.
package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSystem is the set of filesystem operations the scan readers and
// writers need. OSFileSystem serves production; MemoryFileSystem serves tests.
type FileSystem interface {
	// Open opens the named file for sequential reading.
	Open(name string) (fs.File, error)

	// Create creates or truncates the named file for writing.
	Create(name string) (io.WriteCloser, error)

	// ReadFile returns the whole contents of the named file.
	ReadFile(name string) ([]byte, error)

	// WriteFile replaces the named file with data.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Stat describes the named file. Size is used to bound scan reads.
	Stat(name string) (fs.FileInfo, error)

	// Exists reports whether the named file exists.
	Exists(name string) bool
}

// OSFileSystem implements FileSystem on top of package os.
type OSFileSystem struct{}

func (OSFileSystem) Open(name string) (fs.File, error) { return os.Open(name) }

func (OSFileSystem) Create(name string) (io.WriteCloser, error) { return os.Create(name) }

func (OSFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem keeps files in memory. Safe for concurrent use, so
// parallel scan loads in tests can share one instance.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	// opened counts Open calls per file; tests use it to check that
	// handles are released.
	opened map[string]int
	closed map[string]int
}

// NewMemoryFileSystem returns an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files:  make(map[string][]byte),
		opened: make(map[string]int),
		closed: make(map[string]int),
	}
}

func (m *MemoryFileSystem) Open(name string) (fs.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	m.opened[name]++
	return &memFileReader{fs: m, name: name, data: data}, nil
}

func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	m.files[name] = []byte{}
	return &memFileWriter{fs: m, name: name}, nil
}

func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[filepath.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryFileSystem) WriteFile(name string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[filepath.Clean(name)] = buf
	return nil
}

func (m *MemoryFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return &memFileInfo{name: filepath.Base(name), size: int64(len(data))}, nil
}

func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[filepath.Clean(name)]
	return ok
}

// OpenHandles returns the number of handles on name that were opened but
// not yet closed.
func (m *MemoryFileSystem) OpenHandles(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	return m.opened[name] - m.closed[name]
}

type memFileReader struct {
	fs     *MemoryFileSystem
	name   string
	data   []byte
	offset int
	done   bool
}

func (f *memFileReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, fs.ErrClosed
	}
	if f.offset >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.offset:])
	f.offset += n
	return n, nil
}

func (f *memFileReader) Close() error {
	if f.done {
		return fs.ErrClosed
	}
	f.done = true
	f.fs.mu.Lock()
	f.fs.closed[f.name]++
	f.fs.mu.Unlock()
	return nil
}

func (f *memFileReader) Stat() (fs.FileInfo, error) {
	return &memFileInfo{name: filepath.Base(f.name), size: int64(len(f.data))}, nil
}

type memFileWriter struct {
	fs   *MemoryFileSystem
	name string
	buf  []byte
}

func (f *memFileWriter) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

func (f *memFileWriter) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.fs.files[f.name] = f.buf
	return nil
}

type memFileInfo struct {
	name string
	size int64
}

func (i *memFileInfo) Name() string       { return i.name }
func (i *memFileInfo) Size() int64        { return i.size }
func (i *memFileInfo) Mode() os.FileMode  { return 0o644 }
func (i *memFileInfo) ModTime() time.Time { return time.Time{} }
func (i *memFileInfo) IsDir() bool        { return false }
func (i *memFileInfo) Sys() any           { return nil }
