package utils

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-fleet-zkvm/pkg/sha2"
)

// Channel represents a Fiat-Shamir transcript channel
type Channel struct {
	state    []byte
	proof    []string
	hashFunc string
}

// NewChannel creates a new Fiat-Shamir channel
func NewChannel(hashFunc string) *Channel {
	if hashFunc == "" {
		hashFunc = "sha3"
	}
	return &Channel{
		state:    []byte{0},
		proof:    make([]string, 0, 16),
		hashFunc: hashFunc,
	}
}

// Send appends data to the channel state
func (c *Channel) Send(data []byte) {
	c.proof = append(c.proof, fmt.Sprintf("send:%s", hex.EncodeToString(data)))
	c.state = c.hash(append(c.state, data...))
}

// SendTagged absorbs a labelled, length-prefixed field so that adjacent
// fields cannot be re-split into a different transcript.
func (c *Channel) SendTagged(tag string, data []byte) {
	buf := make([]byte, 0, len(tag)+len(data)+16)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(tag)))
	buf = append(buf, tag...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(data)))
	buf = append(buf, data...)
	c.Send(buf)
}

// SendUint64 absorbs a labelled integer.
func (c *Channel) SendUint64(tag string, v uint64) {
	c.SendTagged(tag, binary.LittleEndian.AppendUint64(nil, v))
}

// State returns the current channel state
func (c *Channel) State() []byte {
	return append([]byte(nil), c.state...)
}

// Digest returns the current state as a fixed 32-byte value.
func (c *Channel) Digest() [32]byte {
	var d [32]byte
	copy(d[:], c.state)
	return d
}

// Proof returns the proof transcript
func (c *Channel) Proof() []string {
	return append([]string(nil), c.proof...)
}

// hash computes the hash of the input using the configured hash function
func (c *Channel) hash(data []byte) []byte {
	switch c.hashFunc {
	case "sha256":
		h := sha2.Sum256(data)
		return h[:]
	default:
		h := sha3.Sum256(data)
		return h[:]
	}
}

// String returns a string representation of the channel proof
func (c *Channel) String() string {
	return strings.Join(c.proof, " ")
}
