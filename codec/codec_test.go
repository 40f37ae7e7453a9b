package codec_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/aegisbloom/bloom"
	"github.com/hupe1980/aegisbloom/codec"
)

func buildFilter(t *testing.T) *bloom.Filter {
	t.Helper()
	params, err := bloom.DeriveParams(1000, 0.01, 64, 32, 3)
	require.NoError(t, err)
	f, err := bloom.New(params, bloom.EngineOptimized)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		require.NoError(t, f.Insert(fmt.Appendf(nil, "chunk-%04d", i)))
	}
	return f
}

func TestRoundTrip(t *testing.T) {
	f := buildFilter(t)

	data, err := codec.Encode(f)
	require.NoError(t, err)

	got, err := codec.Decode(data, bloom.EngineOptimized)
	require.NoError(t, err)

	assert.Equal(t, f.Params(), got.Params())
	assert.True(t, f.BitsEqual(got))
	assert.Equal(t, f.SetBits(), got.SetBits())

	// The wire format stores bits, not insert history.
	assert.Zero(t, got.Items())
}

func TestRoundTrip_CrossEngine(t *testing.T) {
	f := buildFilter(t)

	data, err := codec.Encode(f)
	require.NoError(t, err)

	got, err := codec.Decode(data, bloom.EngineReference)
	require.NoError(t, err)
	assert.True(t, f.BitsEqual(got))

	for i := 0; i < 200; i++ {
		ok, err := got.Test(fmt.Appendf(nil, "chunk-%04d", i))
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestEncodeTo_Deterministic(t *testing.T) {
	f := buildFilter(t)

	var a, b bytes.Buffer
	require.NoError(t, codec.EncodeTo(&a, f))
	require.NoError(t, codec.EncodeTo(&b, f))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestDecode_Corrupt(t *testing.T) {
	f := buildFilter(t)
	data, err := codec.Encode(f)
	require.NoError(t, err)

	corrupt := func(mutate func(b []byte)) []byte {
		c := append([]byte(nil), data...)
		mutate(c)
		return c
	}

	t.Run("bad magic", func(t *testing.T) {
		_, err := codec.Decode(corrupt(func(b []byte) { b[0] = 'X' }), bloom.EngineOptimized)
		require.ErrorIs(t, err, codec.ErrBadMagic)
		require.ErrorIs(t, err, codec.ErrCorrupt)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := codec.Decode(corrupt(func(b []byte) { b[5] = 99 }), bloom.EngineOptimized)
		require.ErrorIs(t, err, codec.ErrUnknownVersion)
	})

	t.Run("truncated header", func(t *testing.T) {
		_, err := codec.Decode(data[:10], bloom.EngineOptimized)
		require.ErrorIs(t, err, codec.ErrCorrupt)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := codec.Decode(nil, bloom.EngineOptimized)
		require.ErrorIs(t, err, codec.ErrCorrupt)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		// Zero out the chunk size field.
		_, err := codec.Decode(corrupt(func(b []byte) {
			b[18], b[19], b[20], b[21] = 0, 0, 0, 0
		}), bloom.EngineOptimized)
		require.ErrorIs(t, err, codec.ErrCorrupt)
	})

	t.Run("declared length mismatch", func(t *testing.T) {
		_, err := codec.Decode(corrupt(func(b []byte) { b[53]++ }), bloom.EngineOptimized)
		require.ErrorIs(t, err, codec.ErrLengthMismatch)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := codec.Decode(data[:len(data)-8], bloom.EngineOptimized)
		require.ErrorIs(t, err, codec.ErrCorrupt)
	})

	t.Run("garbage payload", func(t *testing.T) {
		_, err := codec.Decode(corrupt(func(b []byte) {
			for i := 54; i < len(b); i++ {
				b[i] = 0xAA
			}
		}), bloom.EngineOptimized)
		require.ErrorIs(t, err, codec.ErrCorrupt)
	})
}

func TestDecodeFrom_Stream(t *testing.T) {
	f := buildFilter(t)

	var buf bytes.Buffer
	require.NoError(t, codec.EncodeTo(&buf, f))

	got, err := codec.DecodeFrom(&buf, bloom.EngineOptimized)
	require.NoError(t, err)
	assert.True(t, f.BitsEqual(got))
}
