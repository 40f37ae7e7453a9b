// Package mmap provides read-only memory mapping for the filter load path.
// Mapping a persisted filter avoids buffering the compressed blob twice
// before it is inflated into the bit field.
package mmap

import (
	"errors"
	"os"
)

// File is a read-only memory-mapped file.
type File struct {
	data []byte
	f    *os.File
}

// Open maps the file at path read-only. Empty files map to a nil byte
// slice, which is still a valid (empty) mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size < 0 {
		f.Close()
		return nil, errors.New("mmap: negative file size")
	}
	if size == 0 {
		return &File{f: f}, nil
	}

	data, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{data: data, f: f}, nil
}

// Bytes returns the mapped contents. The slice is valid until Close.
func (m *File) Bytes() []byte { return m.data }

// Close unmaps the memory and closes the underlying file.
func (m *File) Close() error {
	if m == nil {
		return nil
	}
	var err error
	if m.data != nil {
		err = unmapFile(m.data)
		m.data = nil
	}
	if m.f != nil {
		if cerr := m.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}
