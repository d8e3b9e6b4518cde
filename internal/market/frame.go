package market

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FrameIDForURL derives the frame's identity from its canonical URL:
// keccak256(abi.encode(string)). The URL is encoded as a dynamic ABI string
// (offset word, length word, right-padded bytes), not bare bytes, and every
// consumer of the engine must derive ids the same way or they will never match.
func FrameIDForURL(url string) common.Hash {
	padded := (len(url) + 31) / 32 * 32
	data := make([]byte, 64+padded)
	data[31] = 0x20 // offset of the dynamic string within the encoding
	binary.BigEndian.PutUint64(data[56:64], uint64(len(url)))
	copy(data[64:], url)
	return crypto.Keccak256Hash(data)
}
