package aegisbloom

import (
	"bytes"
	"io"
	"os"
)

// Source is one input to a build or a batch check: an identifier plus a way
// to open its bytes. Opening may be repeated; each Open returns a fresh
// reader positioned at the start.
type Source interface {
	// ID identifies the source in reports and logs, typically a path.
	ID() string
	// Open returns a reader over the source bytes.
	Open() (io.ReadCloser, error)
}

// FileSource returns a Source backed by the file at path. The file is
// opened lazily, so an unreadable file surfaces as a per-source error
// during the build rather than up front.
func FileSource(path string) Source {
	return fileSource(path)
}

type fileSource string

func (s fileSource) ID() string { return string(s) }

func (s fileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(s))
}

// BytesSource returns a Source over an in-memory byte slice.
func BytesSource(id string, data []byte) Source {
	return &bytesSource{id: id, data: data}
}

type bytesSource struct {
	id   string
	data []byte
}

func (s *bytesSource) ID() string { return s.id }

func (s *bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}
