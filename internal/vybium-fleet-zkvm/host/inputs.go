package host

import (
	"encoding/binary"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/pkg/fleetcore"
)

const bundleTag = "vybium-fleet-zkvm/bundle/v1"

// Bundle is the immutable input of one proving run: an ordered public frame
// stream and an ordered private frame stream.
type Bundle struct {
	public  [][]byte
	private [][]byte
	digest  core.Digest
}

// Public returns a copy of the public frames
func (b *Bundle) Public() [][]byte { return cloneFrames(b.public) }

// Private returns a copy of the private frames
func (b *Bundle) Private() [][]byte { return cloneFrames(b.private) }

// Digest identifies the bundle contents
func (b *Bundle) Digest() core.Digest { return b.digest }

// intact reports whether the frames still hash to the recorded digest
func (b *Bundle) intact() bool {
	return bundleDigest(b.public, b.private) == b.digest
}

// InputBuilder assembles a Bundle. The first error sticks and is returned
// by Build.
type InputBuilder struct {
	public  [][]byte
	private [][]byte
	err     error
}

// NewInputBuilder returns an empty builder
func NewInputBuilder() *InputBuilder {
	return &InputBuilder{}
}

// Public appends a raw public frame
func (b *InputBuilder) Public(frame []byte) *InputBuilder {
	b.public = append(b.public, append([]byte(nil), frame...))
	return b
}

// Private appends a raw private frame
func (b *InputBuilder) Private(frame []byte) *InputBuilder {
	b.private = append(b.private, append([]byte(nil), frame...))
	return b
}

// PublicWords appends one word frame per value
func (b *InputBuilder) PublicWords(values ...uint64) *InputBuilder {
	for _, v := range values {
		if b.checkWord(v) {
			b.public = append(b.public, utils.EncodeWord(v))
		}
	}
	return b
}

// PrivateWords appends one private word frame per value
func (b *InputBuilder) PrivateWords(values ...uint64) *InputBuilder {
	for _, v := range values {
		if b.checkWord(v) {
			b.private = append(b.private, utils.EncodeWord(v))
		}
	}
	return b
}

// PrivateValue appends the canonical fleetcore encoding of v as a private
// frame
func (b *InputBuilder) PrivateValue(v any) *InputBuilder {
	frame, err := fleetcore.Encode(v)
	if err != nil {
		b.fail(utils.NewError(utils.ErrInvalidInput, err, "encode private value"))
		return b
	}
	b.private = append(b.private, frame)
	return b
}

// Build freezes the builder contents into a Bundle
func (b *InputBuilder) Build() (*Bundle, error) {
	if b.err != nil {
		return nil, b.err
	}
	pub, priv := cloneFrames(b.public), cloneFrames(b.private)
	return &Bundle{public: pub, private: priv, digest: bundleDigest(pub, priv)}, nil
}

func (b *InputBuilder) checkWord(v uint64) bool {
	if v >= field.P {
		b.fail(utils.NewError(utils.ErrInvalidInput, nil, "word %d is not below the field modulus", v))
		return false
	}
	return true
}

func (b *InputBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func bundleDigest(public, private [][]byte) core.Digest {
	parts := make([][]byte, 0, 2+2*(len(public)+len(private)))
	for _, stream := range [][][]byte{public, private} {
		parts = append(parts, binary.LittleEndian.AppendUint32(nil, uint32(len(stream))))
		for _, f := range stream {
			parts = append(parts, binary.LittleEndian.AppendUint32(nil, uint32(len(f))), f)
		}
	}
	return core.TaggedSum(bundleTag, parts...)
}

func cloneFrames(frames [][]byte) [][]byte {
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}
