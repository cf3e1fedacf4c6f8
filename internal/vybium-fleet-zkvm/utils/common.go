package utils

import (
	"encoding/binary"
	"fmt"
)

// WordSize is the byte length of a little-endian encoded VM word.
const WordSize = 8

// IsPowerOfTwo checks if a number is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo returns the smallest power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	power := 1
	for power < n {
		power <<= 1
	}
	return power
}

// EncodeWord returns v as an 8-byte little-endian frame.
func EncodeWord(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, WordSize), v)
}

// DecodeWord parses an 8-byte little-endian frame.
func DecodeWord(b []byte) (uint64, error) {
	if len(b) != WordSize {
		return 0, fmt.Errorf("word frame must be %d bytes, got %d", WordSize, len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// DecodeWords parses a concatenation of 8-byte little-endian words.
func DecodeWords(b []byte) ([]uint64, error) {
	if len(b)%WordSize != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of %d", len(b), WordSize)
	}
	out := make([]uint64, 0, len(b)/WordSize)
	for i := 0; i < len(b); i += WordSize {
		out = append(out, binary.LittleEndian.Uint64(b[i:i+WordSize]))
	}
	return out, nil
}
