package blobstore

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// MemoryStore is an in-memory BlobStore for tests and ephemeral pipelines.
// It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Open opens a blob for reading.
func (s *MemoryStore) Open(name string) (Blob, error) {
	s.mu.RLock()
	data, ok := s.blobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob %q: %w", name, ErrNotFound)
	}
	return &memoryBlob{data: data}, nil
}

// Create starts writing a blob; it becomes visible on Close.
func (s *MemoryStore) Create(name string) (io.WriteCloser, error) {
	return &memoryWriter{store: s, name: name}, nil
}

type memoryBlob struct {
	data []byte
}

func (b *memoryBlob) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *memoryBlob) Close() error { return nil }

func (b *memoryBlob) Size() int64 { return int64(len(b.data)) }

func (b *memoryBlob) Bytes() ([]byte, error) { return b.data, nil }

type memoryWriter struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memoryWriter) Close() error {
	w.store.mu.Lock()
	w.store.blobs[w.name] = append([]byte(nil), w.buf.Bytes()...)
	w.store.mu.Unlock()
	return nil
}
