package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MmapFileSystem serves Open from read-only memory maps and everything else
// from the operating system. Empty files cannot be mapped and are opened
// normally.
type MmapFileSystem struct {
	OSFileSystem
}

func (MmapFileSystem) Open(name string) (fs.File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		return f, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map %s: %w", name, err)
	}
	return &mmapFile{fd: f, info: info, data: data}, nil
}

type mmapFile struct {
	fd     *os.File
	info   fs.FileInfo
	data   mmap.MMap
	offset int
}

func (f *mmapFile) Read(p []byte) (int, error) {
	if f.fd == nil {
		return 0, fs.ErrClosed
	}
	if f.offset >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.offset:])
	f.offset += n
	return n, nil
}

func (f *mmapFile) Stat() (fs.FileInfo, error) { return f.info, nil }

// Close unmaps the file and releases its descriptor.
func (f *mmapFile) Close() error {
	if f.fd == nil {
		return fs.ErrClosed
	}
	uerr := f.data.Unmap()
	cerr := f.fd.Close()
	f.fd = nil
	f.data = nil
	if uerr != nil {
		return fmt.Errorf("failed to unmap %s: %w", f.info.Name(), uerr)
	}
	return cerr
}
