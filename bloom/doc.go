// Package bloom implements the membership core: a classic bloom filter over
// fixed-size text chunks.
//
// A Filter never reports a false negative for an inserted chunk. False
// positives occur with a probability bounded by the configured target rate;
// they are a property of the data structure, not a defect, and the
// higher-level consecutive-run scan exists precisely to keep isolated false
// positives from ever being treated as evidence.
package bloom
