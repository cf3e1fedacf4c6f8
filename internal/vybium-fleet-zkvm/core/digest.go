package core

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/vybium/vybium-fleet-zkvm/pkg/sha2"
)

// DigestSize is the length of every identifier and commitment.
const DigestSize = sha2.Size

// Digest is a SHA-256 value: image identities, journal digests, trace roots.
type Digest [DigestSize]byte

// Sum hashes the concatenation of parts.
func Sum(parts ...[]byte) Digest {
	return Digest(sha2.SumConcat(parts...))
}

// TaggedSum hashes parts under a domain separation tag.
func TaggedSum(tag string, parts ...[]byte) Digest {
	all := make([][]byte, 0, len(parts)+1)
	all = append(all, []byte(tag))
	all = append(all, parts...)
	return Sum(all...)
}

// DigestFromBytes copies a 32-byte slice into a Digest.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// ParseDigest accepts a hex digest or a CIDv1 with a sha2-256 multihash.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
		return DigestFromBytes(raw)
	}

	c, err := cid.Decode(s)
	if err != nil {
		return Digest{}, fmt.Errorf("digest %q is neither hex nor a CID: %w", s, err)
	}
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return Digest{}, fmt.Errorf("decode multihash: %w", err)
	}
	if decoded.Code != multihash.SHA2_256 {
		return Digest{}, fmt.Errorf("unsupported multihash code 0x%x", decoded.Code)
	}
	return DigestFromBytes(decoded.Digest)
}

// Bytes returns a copy of the digest.
func (d Digest) Bytes() []byte {
	return append([]byte(nil), d[:]...)
}

// Hex returns the lower-case hex encoding.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String returns the hex encoding.
func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// CID returns the digest as a CIDv1 with the raw codec.
func (d Digest) CID() cid.Cid {
	mh, err := multihash.Encode(d[:], multihash.SHA2_256)
	if err != nil {
		// Encode only fails for unknown codes or bad lengths.
		panic(fmt.Sprintf("core: multihash encode: %v", err))
	}
	return cid.NewCidV1(cid.Raw, mh)
}
