// Package sha2 is the accelerated SHA-256 binding used by guest programs and
// the proving host. Digests are bit-identical to crypto/sha256; only the
// compression function is swapped for a SIMD/SHA-NI implementation.
package sha2

import (
	"crypto/sha256"
	"hash"

	simd "github.com/minio/sha256-simd"
)

const (
	// Size is the digest length in bytes.
	Size = simd.Size
	// BlockSize is the compression block length in bytes.
	BlockSize = simd.BlockSize
)

// Hasher is the SHA-256 capability. Accelerated is the production
// implementation; Reference exists as the equivalence oracle.
type Hasher interface {
	New() hash.Hash
	Sum256(data []byte) [Size]byte
}

type accelerated struct{}

func (accelerated) New() hash.Hash                { return simd.New() }
func (accelerated) Sum256(data []byte) [Size]byte { return simd.Sum256(data) }

type reference struct{}

func (reference) New() hash.Hash                { return sha256.New() }
func (reference) Sum256(data []byte) [Size]byte { return sha256.Sum256(data) }

var (
	// Accelerated is backed by minio/sha256-simd.
	Accelerated Hasher = accelerated{}
	// Reference is backed by crypto/sha256.
	Reference Hasher = reference{}
)

// New returns a streaming accelerated SHA-256 hash.
func New() hash.Hash {
	return Accelerated.New()
}

// Sum256 returns the SHA-256 digest of data.
func Sum256(data []byte) [Size]byte {
	return Accelerated.Sum256(data)
}

// SumConcat hashes the concatenation of parts without building it.
func SumConcat(parts ...[]byte) [Size]byte {
	h := New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [Size]byte
	h.Sum(out[:0])
	return out
}

// BlockCount returns the number of compression blocks needed for an n-byte
// message, padding included.
func BlockCount(n int) int {
	// 1 byte of 0x80 and 8 bytes of length are always appended.
	return (n + 9 + BlockSize - 1) / BlockSize
}
