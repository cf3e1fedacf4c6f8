package vybiumfleetzkvm

import (
	"io"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/guest"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/host"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/protocols"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/random"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/receipt"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/verifier"
)

// Receipt is the output of a successful proving run
type Receipt = receipt.Receipt

// Digest is a 32-byte identity such as an image id
type Digest = core.Digest

// Image is a guest program image
type Image = guest.Image

// Bundle is the immutable input of a proving run
type Bundle = host.Bundle

// InputBuilder assembles a Bundle
type InputBuilder = host.InputBuilder

// Host proves guest runs
type Host = host.Host

// HostOption configures a Host
type HostOption = host.Option

// Execution summarizes a dry run
type Execution = host.Execution

// Job is one entry of a proving batch
type Job = host.Job

// AuditRecord is the secret that lets a host re-execute and check a receipt
type AuditRecord = host.AuditRecord

// Verifier checks receipts
type Verifier = verifier.Verifier

// VerifierOption configures a Verifier
type VerifierOption = verifier.Option

// Result is a verification outcome
type Result = verifier.Result

// Config is the host configuration
type Config = utils.Config

// Signer produces seal signatures
type Signer = protocols.Signer

// Scheme is a seal signature scheme
type Scheme = protocols.Scheme

// KeyRing holds trusted seal keys
type KeyRing = protocols.KeyRing

// TrustedKey is a seal verification key
type TrustedKey = protocols.TrustedKey

// RandomSource supplies nonces and salts to the host
type RandomSource = random.Source

// Seal schemes
const (
	SchemeEd25519    = protocols.SchemeEd25519
	SchemeDilithium3 = protocols.SchemeDilithium3
)

// Host options
var (
	WithRegistry = host.WithRegistry
	WithRandom   = host.WithRandom
	WithLogger   = host.WithLogger
	WithMetrics  = host.WithMetrics
	WithBackend  = host.WithBackend
)

// Verifier options
var (
	WithVerifierLogger  = verifier.WithLogger
	WithVerifierMetrics = verifier.WithMetrics
)

// DefaultConfig returns the default host configuration
func DefaultConfig() *Config {
	return utils.DefaultConfig()
}

// LoadConfig reads a YAML configuration file over the defaults
func LoadConfig(path string) (*Config, error) {
	return utils.LoadConfig(path)
}

// NewHost creates a proving host
func NewHost(cfg *Config, signer Signer, opts ...HostOption) (*Host, error) {
	return host.New(cfg, signer, opts...)
}

// NewVerifier creates a verifier trusting keys
func NewVerifier(keys *KeyRing, opts ...VerifierOption) *Verifier {
	return verifier.New(keys, opts...)
}

// NewInputBuilder returns an empty input builder
func NewInputBuilder() *InputBuilder {
	return host.NewInputBuilder()
}

// NewKeyRing creates a key ring trusting keys
func NewKeyRing(keys ...TrustedKey) *KeyRing {
	return protocols.NewKeyRing(keys...)
}

// NewSigner creates a signer from a 32-byte seed
func NewSigner(scheme Scheme, seed []byte) (Signer, error) {
	return protocols.NewSigner(scheme, seed)
}

// GenerateSigner creates a signer from rand, or crypto/rand when rand is nil
func GenerateSigner(scheme Scheme, rand io.Reader) (Signer, error) {
	if rand == nil {
		rand = random.System()
	}
	return protocols.GenerateSigner(scheme, rand)
}

// Builtin returns an embedded guest image
func Builtin(name string) (*Image, error) {
	return guest.Builtin(name)
}

// MustBuiltin is Builtin for names known at compile time
func MustBuiltin(name string) *Image {
	return guest.MustBuiltin(name)
}

// Builtins lists the embedded guest names
func Builtins() []string {
	return guest.Builtins()
}

// LoadImage reads a .vimg artifact
func LoadImage(path string) (*Image, error) {
	return guest.Load(path)
}

// AssembleImage assembles guest source text
func AssembleImage(src string) (*Image, error) {
	return guest.Assemble(src)
}

// DecodeReceipt parses a serialized receipt
func DecodeReceipt(data []byte) (*Receipt, error) {
	return receipt.Decode(data)
}

// ParseDigest parses a hex image id
func ParseDigest(s string) (Digest, error) {
	return core.ParseDigest(s)
}
