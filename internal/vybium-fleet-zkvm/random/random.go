// Package random is the host-side source of nonces, session ids and salts.
// The guest VM never sees it.
package random

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/vybium/vybium-fleet-zkvm/pkg/sha2"
)

// NonceSize is the length of proving nonces
const NonceSize = 32

// saltAlphabet is the URL-safe nanoid alphabet
const saltAlphabet = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"

// Source supplies unpredictable values to the proving host
type Source interface {
	io.Reader
	Nonce() ([NonceSize]byte, error)
	SessionID() (uuid.UUID, error)
	Salt(n int) (string, error)
}

type source struct {
	mu sync.Mutex
	r  io.Reader
}

// System returns a source backed by the operating system CSPRNG
func System() Source {
	return &source{r: rand.Reader}
}

// Deterministic returns a reproducible source expanding seed with
// HKDF-SHA256. It is meant for tests and replays, never for production
// proving.
func Deterministic(seed []byte) Source {
	return &source{r: &expander{seed: append([]byte(nil), seed...)}}
}

// expansionBlock stays below the HKDF-SHA256 output limit of 255 hashes
const expansionBlock = 4096

// expander is an unbounded HKDF stream: block i is expanded with the block
// counter in its info string.
type expander struct {
	seed    []byte
	counter uint64
	buf     []byte
}

func (e *expander) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(e.buf) == 0 {
			block := make([]byte, expansionBlock)
			info := fmt.Sprintf("vybium-fleet-zkvm/random/v1/%d", e.counter)
			if _, err := io.ReadFull(hkdf.New(sha2.New, e.seed, nil, []byte(info)), block); err != nil {
				return n, err
			}
			e.counter++
			e.buf = block
		}
		c := copy(p[n:], e.buf)
		e.buf = e.buf[c:]
		n += c
	}
	return n, nil
}

// FromReader wraps an arbitrary reader
func FromReader(r io.Reader) Source {
	return &source{r: r}
}

func (s *source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return io.ReadFull(s.r, p)
}

func (s *source) Nonce() ([NonceSize]byte, error) {
	var n [NonceSize]byte
	if _, err := s.Read(n[:]); err != nil {
		return n, fmt.Errorf("read nonce: %w", err)
	}
	return n, nil
}

func (s *source) SessionID() (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := uuid.NewRandomFromReader(s.r)
	if err != nil {
		return uuid.Nil, fmt.Errorf("read session id: %w", err)
	}
	return id, nil
}

// Salt returns n characters from the nanoid alphabet. The alphabet has 64
// symbols, so masking a byte to 6 bits is unbiased.
func (s *source) Salt(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("salt length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := s.Read(buf); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	for i, b := range buf {
		buf[i] = saltAlphabet[b&63]
	}
	return string(buf), nil
}

// DeriveKey expands secret into a 32-byte key bound to info
func DeriveKey(secret []byte, info string) ([32]byte, error) {
	var key [32]byte
	if _, err := io.ReadFull(hkdf.New(sha2.New, secret, nil, []byte(info)), key[:]); err != nil {
		return key, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}
