package utils

import (
	"bytes"
	"testing"
)

// TestPowerOfTwo tests IsPowerOfTwo and NextPowerOfTwo
func TestPowerOfTwo(t *testing.T) {
	tests := []struct {
		n       int
		isPower bool
		next    int
	}{
		{-1, false, 1},
		{0, false, 1},
		{1, true, 1},
		{3, false, 4},
		{64, true, 64},
		{65, false, 128},
	}

	for _, tt := range tests {
		if got := IsPowerOfTwo(tt.n); got != tt.isPower {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", tt.n, got, tt.isPower)
		}
		if got := NextPowerOfTwo(tt.n); got != tt.next {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", tt.n, got, tt.next)
		}
	}
}

// TestWords tests word frame encoding
func TestWords(t *testing.T) {
	frame := EncodeWord(7)
	if !bytes.Equal(frame, []byte{7, 0, 0, 0, 0, 0, 0, 0}) {
		t.Errorf("EncodeWord(7) = %v", frame)
	}
	v, err := DecodeWord(frame)
	if err != nil || v != 7 {
		t.Errorf("DecodeWord() = %d, %v", v, err)
	}
	if _, err := DecodeWord(frame[:7]); err == nil {
		t.Error("DecodeWord() accepted a short frame")
	}

	words, err := DecodeWords(append(EncodeWord(3), EncodeWord(4)...))
	if err != nil || len(words) != 2 || words[0] != 3 || words[1] != 4 {
		t.Errorf("DecodeWords() = %v, %v", words, err)
	}
	if _, err := DecodeWords([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeWords() accepted a ragged buffer")
	}
}
