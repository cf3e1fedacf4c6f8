// Package protocols defines the receipt claim, the seal that attests it and
// the signature schemes a seal may use.
//
// Receipts follow a trusted-prover model. A seal is a signature by a prover
// key over the claim digest, so a verifier accepts exactly the claims a
// trusted key signed; it learns nothing else about the execution. The claim
// also commits to the blinded execution trace. The trace is keyed with a
// per-run secret that never leaves the prover, so the commitment reveals
// nothing about private inputs, and a party given that secret and the
// inputs can re-execute the guest and check the signed claim against it.
package protocols

import (
	"fmt"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

// CurrentVersion is the version of the claim and seal formats. It changes
// whenever either encoding or the transcript changes.
const CurrentVersion uint16 = 1

// NonceSize is the length of the per-proof nonce
const NonceSize = 32

const journalTag = "vybium-fleet-zkvm/journal/v1"

// Claim contains the public statement a seal attests: this image ran to
// completion and produced this journal.
type Claim struct {
	Version       uint16
	ImageID       core.Digest
	JournalDigest core.Digest
	ExitCode      uint64
	Cycles        uint64
	TraceRoot     core.Digest
	Nonce         [NonceSize]byte
}

// JournalDigest hashes a journal for inclusion in a claim
func JournalDigest(journal []byte) core.Digest {
	return core.TaggedSum(journalTag, journal)
}

// NewClaim creates a claim for a completed run
func NewClaim(imageID core.Digest, journal []byte) *Claim {
	return &Claim{
		Version:       CurrentVersion,
		ImageID:       imageID,
		JournalDigest: JournalDigest(journal),
	}
}

// WithExecution sets the execution summary of the run
func (c *Claim) WithExecution(exitCode, cycles uint64, traceRoot core.Digest) *Claim {
	c.ExitCode = exitCode
	c.Cycles = cycles
	c.TraceRoot = traceRoot
	return c
}

// WithNonce sets the proving nonce
func (c *Claim) WithNonce(nonce [NonceSize]byte) *Claim {
	c.Nonce = nonce
	return c
}

// Validate checks if the claim is well-formed
func (c *Claim) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported claim version %d", c.Version)
	}
	if c.ImageID.IsZero() {
		return fmt.Errorf("claim has no image identity")
	}
	if c.TraceRoot.IsZero() {
		return fmt.Errorf("claim has no trace root")
	}
	return nil
}

// Transcript absorbs every claim field into a fresh Fiat-Shamir channel
func (c *Claim) Transcript(hashFunc string) *utils.Channel {
	ch := utils.NewChannel(hashFunc)
	ch.SendUint64("version", uint64(c.Version))
	ch.SendTagged("image_id", c.ImageID[:])
	ch.SendTagged("journal", c.JournalDigest[:])
	ch.SendUint64("exit_code", c.ExitCode)
	ch.SendUint64("cycles", c.Cycles)
	ch.SendTagged("trace_root", c.TraceRoot[:])
	ch.SendTagged("nonce", c.Nonce[:])
	return ch
}

// Digest computes the claim digest a seal signs
func (c *Claim) Digest(hashFunc string) core.Digest {
	return core.Digest(c.Transcript(hashFunc).Digest())
}
