// Package blobstore abstracts where persisted filters live.
//
// Filters are written once and read many times, so the interface is split
// into an immutable read side (Open) and an all-or-nothing write side
// (Create): a blob either appears complete or not at all, never truncated.
package blobstore

import (
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error satisfying
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable filter blobs by name.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(name string) (Blob, error)

	// Create starts writing a new blob. The blob becomes visible under its
	// name only when the returned writer is closed without error.
	Create(name string) (io.WriteCloser, error)
}

// Blob is a read-only handle to a stored filter.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the blob length in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs whose contents are available
// as a byte slice without copying. The slice is valid until Close.
type Mappable interface {
	Bytes() ([]byte, error)
}
