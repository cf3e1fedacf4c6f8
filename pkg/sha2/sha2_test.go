package sha2

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strings"
	"testing"
)

func TestSum256GoldenVectors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"two blocks", "abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq",
			"248d6a61d20638b8e5c026930c3e6039a33ce45964ff2167f6ecedd419db06c1"},
		{"million a", strings.Repeat("a", 1000000),
			"cdc76e5c9914fb9281a1c7e284d73e67f1809a48a497200e046d39ccc7112cd0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sum256([]byte(tt.input))
			if hex.EncodeToString(got[:]) != tt.want {
				t.Errorf("Sum256() = %x, want %s", got, tt.want)
			}
		})
	}
}

func TestAcceleratedMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	lengths := []int{0, 1, 55, 56, 63, 64, 65, 119, 120, 127, 128, 129, 1000, 4096, 65537}
	for i := 0; i < 64; i++ {
		lengths = append(lengths, rng.Intn(10000))
	}

	for _, n := range lengths {
		data := make([]byte, n)
		rng.Read(data)

		acc := Accelerated.Sum256(data)
		ref := Reference.Sum256(data)
		if acc != ref {
			t.Fatalf("length %d: accelerated %x != reference %x", n, acc, ref)
		}
		if std := sha256.Sum256(data); acc != std {
			t.Fatalf("length %d: accelerated %x != crypto/sha256 %x", n, acc, std)
		}
	}
}

func TestStreamingWrites(t *testing.T) {
	data := bytes.Repeat([]byte("fleet"), 1000)
	want := sha256.Sum256(data)

	h := New()
	for off := 0; off < len(data); off += 37 {
		end := off + 37
		if end > len(data) {
			end = len(data)
		}
		h.Write(data[off:end])
	}
	got := h.Sum(nil)
	if !bytes.Equal(got, want[:]) {
		t.Errorf("streaming digest = %x, want %x", got, want)
	}

	h.Reset()
	h.Write(data)
	if got := h.Sum(nil); !bytes.Equal(got, want[:]) {
		t.Errorf("digest after Reset = %x, want %x", got, want)
	}
	if h.Size() != Size || h.BlockSize() != BlockSize {
		t.Errorf("Size/BlockSize = %d/%d, want %d/%d", h.Size(), h.BlockSize(), Size, BlockSize)
	}
}

func TestSumConcat(t *testing.T) {
	a, b, c := []byte("board"), []byte{}, []byte("salt")
	want := sha256.Sum256([]byte("boardsalt"))
	if got := SumConcat(a, b, c); got != want {
		t.Errorf("SumConcat() = %x, want %x", got, want)
	}
}

func TestBlockCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 1}, {55, 1}, {56, 2}, {64, 2}, {119, 2}, {120, 3},
	}
	for _, tt := range tests {
		if got := BlockCount(tt.n); got != tt.want {
			t.Errorf("BlockCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
