package farcaster

import "lukechampine.com/blake3"

// MessageHashSize is the truncated blake3 digest length Farcaster signs.
const MessageHashSize = 20

// Hasher produces the content identifier a signature covers. Pluggable so the
// verifier can be exercised with deterministic fakes.
type Hasher interface {
	MessageHash(data []byte) []byte
}

// Blake3Hasher is the production hasher: blake3 truncated to 160 bits,
// matching the hash bound into Farcaster message signatures.
type Blake3Hasher struct{}

func (Blake3Hasher) MessageHash(data []byte) []byte {
	h := blake3.New(MessageHashSize, nil)
	h.Write(data) //nolint:errcheck
	return h.Sum(nil)
}
