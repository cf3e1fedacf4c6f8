// Package verifier checks receipts against an expected image identity and a
// set of trusted prover keys.
//
// An accepted receipt means a trusted key signed the claim: the image
// identity, the journal and the execution summary. It does not by itself
// show that the guest produced that journal. Re-execution against the
// per-run audit record does; see host.Audit.
//
// Verification is pure: it reads only the receipt, the expected identity and
// the key ring, so repeated calls return the same result and a Verifier may
// be shared between goroutines. Rejection is an ordinary Result, never an
// error or a panic.
package verifier

import (
	"fmt"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/guest"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/log"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/metrics"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/protocols"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/receipt"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

// Result is the outcome of a verification
type Result struct {
	Accepted bool
	Reason   string
	journal  []byte
}

// Journal returns the verified journal. It returns false unless the
// receipt was accepted.
func (r Result) Journal() ([]byte, bool) {
	if !r.Accepted {
		return nil, false
	}
	return append([]byte(nil), r.journal...), true
}

// Err returns nil for an accepted result and a VerificationRejected error
// carrying the reason otherwise
func (r Result) Err() error {
	if r.Accepted {
		return nil
	}
	return utils.NewError(utils.ErrVerificationRejected, nil, "%s", r.Reason)
}

func reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Verifier checks receipts sealed by trusted keys
type Verifier struct {
	keys    *protocols.KeyRing
	log     *log.Logger
	metrics *metrics.Metrics
}

// Option configures a Verifier
type Option func(*Verifier)

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(v *Verifier) { v.log = l }
}

// WithMetrics enables instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// New creates a verifier trusting the keys in keys
func New(keys *protocols.KeyRing, opts ...Option) *Verifier {
	v := &Verifier{keys: keys}
	for _, opt := range opts {
		opt(v)
	}
	if v.log == nil {
		v.log = log.Default()
	}
	v.log = v.log.Module("verifier")
	return v
}

// Verify checks rc against the expected image identity
func (v *Verifier) Verify(rc *receipt.Receipt, expected core.Digest) Result {
	return v.observe(v.verify(rc, expected))
}

// VerifyImage checks rc against img, with the identity rederived from img
func (v *Verifier) VerifyImage(rc *receipt.Receipt, img *guest.Image) Result {
	if img == nil {
		return v.observe(reject("no image to verify against"))
	}
	if err := img.Validate(); err != nil {
		return v.observe(reject("invalid image: %v", err))
	}
	return v.observe(v.verify(rc, img.ID()))
}

// VerifyBytes decodes a serialized receipt and verifies it
func (v *Verifier) VerifyBytes(raw []byte, expected core.Digest) Result {
	rc, err := receipt.Decode(raw)
	if err != nil {
		return v.observe(reject("decode receipt: %v", err))
	}
	return v.Verify(rc, expected)
}

func (v *Verifier) observe(res Result) Result {
	v.metrics.ObserveVerification(res.Accepted)
	if !res.Accepted {
		v.log.Debug("receipt rejected", "reason", res.Reason)
	}
	return res
}

func (v *Verifier) verify(rc *receipt.Receipt, expected core.Digest) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = reject("internal error: %v", r)
		}
	}()

	if rc == nil {
		return reject("nil receipt")
	}
	if rc.Version != receipt.Version {
		return reject("unsupported receipt version %d", rc.Version)
	}
	if expected.IsZero() {
		return reject("no expected image id")
	}
	if rc.ImageID != expected {
		return reject("image id mismatch: receipt %s, expected %s", rc.ImageID.Hex(), expected.Hex())
	}

	seal, err := protocols.DecodeSeal(rc.Proof)
	if err != nil {
		return reject("decode seal: %v", err)
	}
	hashFunc, err := protocols.TranscriptName(seal.Transcript)
	if err != nil {
		return reject("%v", err)
	}
	key, ok := v.keys.Lookup(seal.KeyID)
	if !ok {
		return reject("seal key %s is not trusted", seal.KeyID.Hex())
	}
	if key.Scheme != seal.Scheme {
		return reject("seal scheme %s does not match trusted key scheme %s", seal.Scheme, key.Scheme)
	}

	claim := seal.Claim(expected, rc.Journal)
	if err := claim.Validate(); err != nil {
		return reject("invalid claim: %v", err)
	}
	msg := seal.SigningMessage(claim.Digest(hashFunc))
	if !protocols.VerifySignature(seal.Scheme, key.PublicKey, msg, seal.Signature) {
		return reject("seal signature does not verify")
	}

	return Result{Accepted: true, journal: append([]byte(nil), rc.Journal...)}
}
