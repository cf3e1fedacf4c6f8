package protocols

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

// Scheme identifies a seal signature scheme on the wire
type Scheme uint8

const (
	SchemeEd25519    Scheme = 1
	SchemeDilithium3 Scheme = 2
)

// SeedSize is the key seed length of every scheme
const SeedSize = 32

const keyIDTag = "vybium-fleet-zkvm/key/v1"

var ErrUnknownScheme = errors.New("protocols: unknown signature scheme")

// String returns the configuration name of the scheme
func (s Scheme) String() string {
	switch s {
	case SchemeEd25519:
		return utils.SchemeEd25519
	case SchemeDilithium3:
		return utils.SchemeDilithium3
	default:
		return fmt.Sprintf("scheme(%d)", s)
	}
}

// ParseScheme maps a configuration name to a scheme
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case utils.SchemeEd25519:
		return SchemeEd25519, nil
	case utils.SchemeDilithium3:
		return SchemeDilithium3, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
}

// SignatureSize returns the fixed signature length of the scheme
func (s Scheme) SignatureSize() int {
	switch s {
	case SchemeEd25519:
		return ed25519.SignatureSize
	case SchemeDilithium3:
		return mode3.SignatureSize
	default:
		return 0
	}
}

// KeyID derives the identifier a seal uses to name its signing key
func KeyID(scheme Scheme, publicKey []byte) core.Digest {
	return core.TaggedSum(keyIDTag, []byte{byte(scheme)}, publicKey)
}

// Signer produces seal signatures
type Signer interface {
	Scheme() Scheme
	PublicKey() []byte
	KeyID() core.Digest
	Sign(message []byte) ([]byte, error)
}

type seedSigner struct {
	scheme Scheme
	seed   [SeedSize]byte
	public []byte

	ed ed25519.PrivateKey
	pq *mode3.PrivateKey
}

// NewSigner derives a signer of the given scheme from a 32-byte seed
func NewSigner(scheme Scheme, seed []byte) (Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(seed))
	}
	s := &seedSigner{scheme: scheme}
	copy(s.seed[:], seed)

	switch scheme {
	case SchemeEd25519:
		s.ed = ed25519.NewKeyFromSeed(seed)
		s.public = append([]byte(nil), s.ed.Public().(ed25519.PublicKey)...)
	case SchemeDilithium3:
		pk, sk := mode3.NewKeyFromSeed(&s.seed)
		pub, err := pk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal dilithium3 public key: %w", err)
		}
		s.pq = sk
		s.public = pub
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, scheme)
	}
	return s, nil
}

// GenerateSigner draws a fresh seed from rand
func GenerateSigner(scheme Scheme, rand io.Reader) (Signer, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, fmt.Errorf("read key seed: %w", err)
	}
	return NewSigner(scheme, seed)
}

func (s *seedSigner) Scheme() Scheme     { return s.scheme }
func (s *seedSigner) PublicKey() []byte  { return append([]byte(nil), s.public...) }
func (s *seedSigner) KeyID() core.Digest { return KeyID(s.scheme, s.public) }

func (s *seedSigner) Sign(message []byte) ([]byte, error) {
	switch s.scheme {
	case SchemeEd25519:
		return ed25519.Sign(s.ed, message), nil
	case SchemeDilithium3:
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(s.pq, message, sig)
		return sig, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, s.scheme)
	}
}

// VerifySignature checks sig over message. Malformed keys or signatures
// simply fail.
func VerifySignature(scheme Scheme, publicKey, message, sig []byte) bool {
	if len(sig) != scheme.SignatureSize() {
		return false
	}
	switch scheme {
	case SchemeEd25519:
		if len(publicKey) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(publicKey), message, sig)
	case SchemeDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(publicKey); err != nil {
			return false
		}
		return mode3.Verify(&pk, message, sig)
	default:
		return false
	}
}

// TrustedKey is a verification key accepted by a KeyRing
type TrustedKey struct {
	Scheme    Scheme
	PublicKey []byte
}

// KeyRing holds the seal keys a verifier trusts. It is safe for
// concurrent use.
type KeyRing struct {
	mu   sync.RWMutex
	keys map[core.Digest]TrustedKey
}

// NewKeyRing creates a key ring trusting the given keys
func NewKeyRing(keys ...TrustedKey) *KeyRing {
	kr := &KeyRing{keys: make(map[core.Digest]TrustedKey)}
	for _, k := range keys {
		kr.Add(k)
	}
	return kr
}

// TrustSigner adds the public half of a signer
func (kr *KeyRing) TrustSigner(s Signer) core.Digest {
	return kr.Add(TrustedKey{Scheme: s.Scheme(), PublicKey: s.PublicKey()})
}

// Add trusts k and returns its key id
func (kr *KeyRing) Add(k TrustedKey) core.Digest {
	id := KeyID(k.Scheme, k.PublicKey)
	kr.mu.Lock()
	defer kr.mu.Unlock()
	kr.keys[id] = TrustedKey{Scheme: k.Scheme, PublicKey: append([]byte(nil), k.PublicKey...)}
	return id
}

// Lookup returns the trusted key with the given id
func (kr *KeyRing) Lookup(id core.Digest) (TrustedKey, bool) {
	if kr == nil {
		return TrustedKey{}, false
	}
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	k, ok := kr.keys[id]
	return k, ok
}

// IDs lists the trusted key ids
func (kr *KeyRing) IDs() []core.Digest {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	ids := make([]core.Digest, 0, len(kr.keys))
	for id := range kr.keys {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids
}

// Key files hold one line, scheme:hex. Secret files carry the seed, public
// files the public key.

// SaveSigner writes the signer seed to path with owner-only permissions.
// An existing file is kept unless overwrite is set.
func SaveSigner(path string, s Signer, overwrite bool) error {
	ss, ok := s.(*seedSigner)
	if !ok {
		return fmt.Errorf("signer %T cannot be exported", s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(formatKey(ss.scheme, ss.seed[:])); err != nil {
		return err
	}
	return file.Close()
}

// LoadSigner reads a secret key file
func LoadSigner(path string) (Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	scheme, seed, err := parseKey(string(data))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return NewSigner(scheme, seed)
}

// SavePublicKey writes the public half of s to path
func SavePublicKey(path string, s Signer) error {
	return os.WriteFile(path, []byte(formatKey(s.Scheme(), s.PublicKey())), 0o644)
}

// LoadPublicKey reads a public key file
func LoadPublicKey(path string) (TrustedKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TrustedKey{}, err
	}
	scheme, pub, err := parseKey(string(data))
	if err != nil {
		return TrustedKey{}, fmt.Errorf("public key file %s: %w", path, err)
	}
	return TrustedKey{Scheme: scheme, PublicKey: pub}, nil
}

func formatKey(scheme Scheme, key []byte) string {
	return scheme.String() + ":" + hex.EncodeToString(key) + "\n"
}

func parseKey(s string) (Scheme, []byte, error) {
	name, encoded, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, nil, fmt.Errorf("expected scheme:hex")
	}
	scheme, err := ParseScheme(name)
	if err != nil {
		return 0, nil, err
	}
	key, err := hex.DecodeString(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		return 0, nil, err
	}
	return scheme, key, nil
}
