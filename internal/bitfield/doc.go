// Package bitfield implements the fixed-size, word-packed bit array that
// backs a membership filter.
//
// The bit order is LSB0: bit i lives in word i/64 at bit position i%64, and
// serialized bytes are the little-endian view of the words. Two engines
// implement the bit operations - an optimized word-at-a-time engine and a
// portable reference engine. Both are required to produce bit-identical
// results for identical inputs; the equivalence is enforced by tests rather
// than assumed.
package bitfield
