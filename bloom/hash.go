package bloom

import (
	"crypto/sha256"
	"encoding/binary"
)

// hashPair derives the two double-hashing bases from a single SHA-256 digest
// of the chunk. h1 and h2 come from disjoint halves of the digest, read
// big-endian; h2 must be nonzero or every probe would collapse onto h1.
func hashPair(chunk []byte) (h1, h2 uint64) {
	sum := sha256.Sum256(chunk)
	h1 = binary.BigEndian.Uint64(sum[0:8])
	h2 = binary.BigEndian.Uint64(sum[8:16])
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

// positions appends the k bit positions for chunk to dst and returns it.
// Position i is (h1 + i*h2) mod m: one digest, k probes, with the pairwise
// independence the closed-form false positive estimate relies on.
func positions(dst []uint64, chunk []byte, m uint64, k uint32) []uint64 {
	h1, h2 := hashPair(chunk)
	for i := uint64(0); i < uint64(k); i++ {
		dst = append(dst, (h1+i*h2)%m)
	}
	return dst
}
