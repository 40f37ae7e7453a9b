// Package spill stores completed build shards as compressed scratch files.
//
// A W-worker build otherwise holds W full bit arrays until the merge; with
// spilling each worker writes its finished shard to disk and frees it, so
// the merge phase needs at most two arrays in memory at a time. Spill files
// are scratch data with their own tiny framing - they are unrelated to the
// versioned persistence format and never leave the build.
package spill

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the spill block compression algorithm.
type Compression uint8

const (
	// None stores shards uncompressed.
	None Compression = 0
	// LZ4 favors speed; a freshly built shard is usually sparse enough
	// that even a fast codec shrinks it well.
	LZ4 Compression = 1
	// ZSTD favors ratio, for builds where scratch space is the constraint.
	ZSTD Compression = 2
)

// blockHeaderSize frames every spill file:
// [compression:u8][uncompressedLen:u64][compressedLen:u64].
// compressedLen == 0 means the payload is stored uncompressed.
const blockHeaderSize = 1 + 8 + 8

// ErrMalformed indicates a spill file that does not match its framing.
var ErrMalformed = errors.New("malformed spill block")

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode frames and compresses data into a self-describing spill block.
// If compression does not pay (ratio above 0.9) the payload is stored raw.
func Encode(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		compressed = buf[:n] // n == 0 means incompressible
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("unknown spill compression %d", c)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, blockHeaderSize+len(data))
		out[0] = byte(c)
		binary.LittleEndian.PutUint64(out[1:9], uint64(len(data)))
		binary.LittleEndian.PutUint64(out[9:17], 0)
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	out[0] = byte(c)
	binary.LittleEndian.PutUint64(out[1:9], uint64(len(data)))
	binary.LittleEndian.PutUint64(out[9:17], uint64(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

// Decode reverses Encode.
func Decode(block []byte) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(block))
	}
	c := Compression(block[0])
	uncompressedLen := binary.LittleEndian.Uint64(block[1:9])
	compressedLen := binary.LittleEndian.Uint64(block[9:17])
	payload := block[blockHeaderSize:]

	if compressedLen == 0 {
		if uint64(len(payload)) != uncompressedLen {
			return nil, fmt.Errorf("%w: raw payload %d, declared %d", ErrMalformed, len(payload), uncompressedLen)
		}
		out := make([]byte, uncompressedLen)
		copy(out, payload)
		return out, nil
	}
	if uint64(len(payload)) != compressedLen {
		return nil, fmt.Errorf("%w: compressed payload %d, declared %d", ErrMalformed, len(payload), compressedLen)
	}

	switch c {
	case LZ4:
		out := make([]byte, uncompressedLen)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(n) != uncompressedLen {
			return nil, fmt.Errorf("%w: inflated to %d, declared %d", ErrMalformed, n, uncompressedLen)
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedLen))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(out)) != uncompressedLen {
			return nil, fmt.Errorf("%w: inflated to %d, declared %d", ErrMalformed, len(out), uncompressedLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrMalformed, c)
	}
}

// WriteFile encodes data and writes it to path.
func WriteFile(path string, data []byte, c Compression) error {
	block, err := Encode(data, c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, block, 0o600)
}

// ReadFile reads and decodes a spill file.
func ReadFile(path string) ([]byte, error) {
	block, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(block)
}
