package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/aegisbloom/internal/mmap"
)

// LocalStore implements BlobStore on the local file system.
//
// Reads memory-map the blob; writes go to a temp file in the same directory
// and are renamed into place on Close, so a crashed save never leaves a
// half-written filter under the target name.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Open opens a blob for reading via mmap.
func (s *LocalStore) Open(name string) (Blob, error) {
	m, err := mmap.Open(filepath.Join(s.root, name))
	if err != nil {
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Create starts writing a blob.
func (s *LocalStore) Create(name string) (io.WriteCloser, error) {
	path := filepath.Join(s.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &atomicWriter{f: tmp, target: path}, nil
}

type localBlob struct {
	m *mmap.File
}

func (b *localBlob) ReadAt(p []byte, off int64) (int, error) {
	data := b.m.Bytes()
	if off < 0 || off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *localBlob) Close() error { return b.m.Close() }

func (b *localBlob) Size() int64 { return int64(len(b.m.Bytes())) }

func (b *localBlob) Bytes() ([]byte, error) { return b.m.Bytes(), nil }

type atomicWriter struct {
	f      *os.File
	target string
}

func (w *atomicWriter) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w *atomicWriter) Close() error {
	if err := w.f.Sync(); err != nil {
		w.abort()
		return err
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return err
	}
	if err := os.Rename(w.f.Name(), w.target); err != nil {
		os.Remove(w.f.Name())
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

func (w *atomicWriter) abort() {
	w.f.Close()
	os.Remove(w.f.Name())
}
