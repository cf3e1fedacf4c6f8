package random

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestDeterministic(t *testing.T) {
	a, b := Deterministic([]byte("seed")), Deterministic([]byte("seed"))
	na, _ := a.Nonce()
	nb, _ := b.Nonce()
	if na != nb {
		t.Error("same seed produced different nonces")
	}
	next, _ := a.Nonce()
	if next == na {
		t.Error("consecutive nonces are equal")
	}

	c := Deterministic([]byte("other"))
	nc, _ := c.Nonce()
	if nc == na {
		t.Error("different seeds produced the same nonce")
	}
}

func TestDeterministicIsUnbounded(t *testing.T) {
	src := Deterministic([]byte("long"))
	buf := make([]byte, 3*expansionBlock+17)
	if _, err := src.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if bytes.Equal(buf[:expansionBlock], buf[expansionBlock:2*expansionBlock]) {
		t.Error("expansion blocks repeat")
	}
}

func TestSessionID(t *testing.T) {
	src := System()
	a, err := src.SessionID()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := src.SessionID()
	if a == b {
		t.Error("session ids repeat")
	}
	if a.Version() != 4 {
		t.Errorf("session id version = %d, want 4", a.Version())
	}
}

func TestSalt(t *testing.T) {
	src := Deterministic([]byte("salt"))
	s, err := src.Salt(21)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 21 {
		t.Errorf("len(Salt(21)) = %d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(saltAlphabet, r) {
			t.Errorf("salt contains %q", r)
		}
	}
	if _, err := src.Salt(0); err == nil {
		t.Error("Salt(0) succeeded")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestReaderFailures(t *testing.T) {
	src := FromReader(failingReader{})
	if _, err := src.Nonce(); err == nil {
		t.Error("Nonce() succeeded without entropy")
	}
	if _, err := src.SessionID(); err == nil {
		t.Error("SessionID() succeeded without entropy")
	}
	if _, err := src.Salt(4); err == nil {
		t.Error("Salt() succeeded without entropy")
	}
}

func TestConcurrentUse(t *testing.T) {
	src := Deterministic([]byte("shared"))
	var wg sync.WaitGroup
	seen := make(chan [NonceSize]byte, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := src.Nonce()
			if err != nil {
				t.Error(err)
				return
			}
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[[NonceSize]byte]bool)
	for n := range seen {
		unique[n] = true
	}
	if len(unique) != 64 {
		t.Errorf("got %d unique nonces from 64 draws", len(unique))
	}
}

func TestDeriveKey(t *testing.T) {
	a, _ := DeriveKey([]byte("nonce"), "trace")
	b, _ := DeriveKey([]byte("nonce"), "trace")
	c, _ := DeriveKey([]byte("nonce"), "other")
	if a != b {
		t.Error("DeriveKey() is not deterministic")
	}
	if a == c {
		t.Error("DeriveKey() ignores info")
	}
}
