package protocols

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

// Transcript hash identifiers carried in a seal
const (
	TranscriptSHA256 uint8 = 1
	TranscriptSHA3   uint8 = 2
)

// maxSignature bounds the signature length accepted from untrusted seals
const maxSignature = 1 << 13

const sealTag = "vybium-fleet-zkvm/seal/v1"

var (
	ErrSealTruncated = errors.New("protocols: truncated seal")
	ErrSealTrailing  = errors.New("protocols: trailing bytes after seal")
	ErrSealVersion   = errors.New("protocols: unsupported seal version")
	ErrSealMalformed = errors.New("protocols: malformed seal")
)

// Seal is the proof carried by a receipt: a signature by a trusted prover key
// over the claim digest. The trace root and height commit to the blinded
// execution trace; only a holder of the run's trace secret can recompute
// them, by re-executing the guest.
type Seal struct {
	Version     uint16
	Scheme      Scheme
	Transcript  uint8
	KeyID       core.Digest
	Nonce       [NonceSize]byte
	ExitCode    uint64
	Cycles      uint64
	TraceHeight uint32
	TraceRoot   core.Digest
	Signature   []byte
}

// TranscriptID maps a configured hash name to its wire identifier
func TranscriptID(hashFunc string) (uint8, error) {
	switch hashFunc {
	case "sha256":
		return TranscriptSHA256, nil
	case "sha3", "":
		return TranscriptSHA3, nil
	default:
		return 0, fmt.Errorf("unsupported transcript hash %q", hashFunc)
	}
}

// TranscriptName maps a wire identifier back to the hash name
func TranscriptName(id uint8) (string, error) {
	switch id {
	case TranscriptSHA256:
		return "sha256", nil
	case TranscriptSHA3:
		return "sha3", nil
	default:
		return "", fmt.Errorf("%w: transcript %d", ErrSealMalformed, id)
	}
}

// Claim rebuilds the claim this seal attests for the given image and journal
func (s *Seal) Claim(imageID core.Digest, journal []byte) *Claim {
	return NewClaim(imageID, journal).
		WithExecution(s.ExitCode, s.Cycles, s.TraceRoot).
		WithNonce(s.Nonce)
}

// SigningMessage is the byte string the seal signature covers: the claim
// digest together with the seal header.
func (s *Seal) SigningMessage(claimDigest core.Digest) []byte {
	var header [8]byte
	binary.LittleEndian.PutUint16(header[0:], s.Version)
	header[2] = byte(s.Scheme)
	header[3] = s.Transcript
	binary.LittleEndian.PutUint32(header[4:], s.TraceHeight)
	d := core.TaggedSum(sealTag, claimDigest[:], header[:], s.KeyID[:])
	return d.Bytes()
}

// Encode serializes the seal in little-endian binary form
func (s *Seal) Encode() []byte {
	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	w(s.Version)
	w(uint8(s.Scheme))
	w(s.Transcript)
	buf.Write(s.KeyID[:])
	buf.Write(s.Nonce[:])
	w(s.ExitCode)
	w(s.Cycles)
	w(s.TraceHeight)
	buf.Write(s.TraceRoot[:])

	w(uint16(len(s.Signature)))
	buf.Write(s.Signature)
	return buf.Bytes()
}

// DecodeSeal parses a seal. Every length is checked against the remaining
// input, so arbitrary bytes either decode or return an error.
func DecodeSeal(data []byte) (*Seal, error) {
	r := bytes.NewReader(data)
	rd := func(v any) error {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return ErrSealTruncated
		}
		return nil
	}
	digest := func(d *core.Digest) error {
		if _, err := io.ReadFull(r, d[:]); err != nil {
			return ErrSealTruncated
		}
		return nil
	}

	s := &Seal{}
	if err := rd(&s.Version); err != nil {
		return nil, err
	}
	if s.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrSealVersion, s.Version)
	}
	var scheme uint8
	if err := rd(&scheme); err != nil {
		return nil, err
	}
	s.Scheme = Scheme(scheme)
	if err := rd(&s.Transcript); err != nil {
		return nil, err
	}
	if err := digest(&s.KeyID); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, s.Nonce[:]); err != nil {
		return nil, ErrSealTruncated
	}
	if err := rd(&s.ExitCode); err != nil {
		return nil, err
	}
	if err := rd(&s.Cycles); err != nil {
		return nil, err
	}
	if err := rd(&s.TraceHeight); err != nil {
		return nil, err
	}
	if err := digest(&s.TraceRoot); err != nil {
		return nil, err
	}

	var sigLen uint16
	if err := rd(&sigLen); err != nil {
		return nil, err
	}
	if int(sigLen) > maxSignature || int(sigLen) > r.Len() {
		return nil, ErrSealTruncated
	}
	s.Signature = make([]byte, sigLen)
	if _, err := io.ReadFull(r, s.Signature); err != nil {
		return nil, ErrSealTruncated
	}
	if r.Len() != 0 {
		return nil, ErrSealTrailing
	}
	return s, nil
}

// SignClaim seals claim with signer. height is the number of committed
// trace leaves.
func SignClaim(claim *Claim, hashFunc string, height int, signer Signer) (*Seal, error) {
	transcript, err := TranscriptID(hashFunc)
	if err != nil {
		return nil, utils.NewError(utils.ErrInvalidConfig, err, "seal transcript")
	}
	if err := claim.Validate(); err != nil {
		return nil, err
	}
	if height <= 0 {
		return nil, fmt.Errorf("trace height %d", height)
	}

	s := &Seal{
		Version:     CurrentVersion,
		Scheme:      signer.Scheme(),
		Transcript:  transcript,
		KeyID:       signer.KeyID(),
		Nonce:       claim.Nonce,
		ExitCode:    claim.ExitCode,
		Cycles:      claim.Cycles,
		TraceHeight: uint32(height),
		TraceRoot:   claim.TraceRoot,
	}
	sig, err := signer.Sign(s.SigningMessage(claim.Digest(hashFunc)))
	if err != nil {
		return nil, fmt.Errorf("sign claim: %w", err)
	}
	s.Signature = sig
	return s, nil
}
