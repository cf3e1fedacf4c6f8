// Package guest defines guest program images: the assembled program, the
// domain modules it links, and the identity derived from both.
package guest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/vm"
)

const (
	// FormatVersion is the current .vimg layout
	FormatVersion uint16 = 1

	// IDTag domain-separates image identities
	IDTag = "vybium-fleet-zkvm/image/v1"

	// MaxProgramWords bounds decoded programs
	MaxProgramWords = 1 << 20
)

var magic = [4]byte{'V', 'F', 'Z', 'I'}

var (
	ErrBadMagic       = errors.New("guest: not a vimg artifact")
	ErrBadVersion     = errors.New("guest: unsupported vimg version")
	ErrTruncated      = errors.New("guest: truncated vimg artifact")
	ErrTrailingBytes  = errors.New("guest: trailing bytes after vimg artifact")
	ErrInvalidProgram = errors.New("guest: invalid program")
)

// Image is a guest program together with the modules it links. Slot k of
// Modules is the module reached by `ecall apply` with slot k.
type Image struct {
	Name    string
	Modules []vm.ModuleRef
	Program *vm.Program
}

// ID returns the image identity: a tagged SHA-256 over the canonical encoding.
// Any change to the program, the name or a module version changes it.
func (img *Image) ID() core.Digest {
	return core.TaggedSum(IDTag, img.Encode())
}

// Validate checks that the image can be encoded and executed
func (img *Image) Validate() error {
	if img.Name == "" || len(img.Name) > math.MaxUint16 {
		return fmt.Errorf("%w: name length %d", ErrInvalidProgram, len(img.Name))
	}
	if len(img.Modules) > math.MaxUint16 {
		return fmt.Errorf("%w: %d modules", ErrInvalidProgram, len(img.Modules))
	}
	for _, m := range img.Modules {
		if m.Name == "" || len(m.Name) > math.MaxUint16 {
			return fmt.Errorf("%w: module name %q", ErrInvalidProgram, m.Name)
		}
	}
	if err := vm.ValidateProgram(img.Program); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	return nil
}

// Encode returns the .vimg artifact bytes
func (img *Image) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(magic[:])
	writeU16(&buf, FormatVersion)
	writeString(&buf, img.Name)

	writeU16(&buf, uint16(len(img.Modules)))
	for _, m := range img.Modules {
		writeString(&buf, m.Name)
		_ = binary.Write(&buf, binary.LittleEndian, m.Version)
	}

	var words []field.Element
	if img.Program != nil {
		words = img.Program.ToWords()
	}
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(words)))
	for _, w := range words {
		_ = binary.Write(&buf, binary.LittleEndian, w.Value())
	}
	return buf.Bytes()
}

// Decode parses and validates a .vimg artifact
func Decode(data []byte) (*Image, error) {
	r := bytes.NewReader(data)

	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, ErrTruncated
	}
	if m != magic {
		return nil, ErrBadMagic
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, ErrTruncated
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}

	name, err := readString(r)
	if err != nil {
		return nil, err
	}

	var nModules uint16
	if err := binary.Read(r, binary.LittleEndian, &nModules); err != nil {
		return nil, ErrTruncated
	}
	modules := make([]vm.ModuleRef, 0, nModules)
	for i := 0; i < int(nModules); i++ {
		modName, err := readString(r)
		if err != nil {
			return nil, err
		}
		var modVersion uint32
		if err := binary.Read(r, binary.LittleEndian, &modVersion); err != nil {
			return nil, ErrTruncated
		}
		modules = append(modules, vm.ModuleRef{Name: modName, Version: modVersion})
	}

	var nWords uint32
	if err := binary.Read(r, binary.LittleEndian, &nWords); err != nil {
		return nil, ErrTruncated
	}
	if nWords > MaxProgramWords || int(nWords)*8 > r.Len() {
		return nil, fmt.Errorf("%w: %d program words", ErrTruncated, nWords)
	}
	words := make([]field.Element, nWords)
	for i := range words {
		var w uint64
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			return nil, ErrTruncated
		}
		if w >= field.P {
			return nil, fmt.Errorf("%w: word %d is not a field element", ErrInvalidProgram, i)
		}
		words[i] = field.New(w)
	}
	if r.Len() != 0 {
		return nil, ErrTrailingBytes
	}

	program, err := vm.ProgramFromWords(words)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	img := &Image{Name: name, Modules: modules, Program: program}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeString(buf *bytes.Buffer, s string) {
	writeU16(buf, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", ErrTruncated
	}
	if int(n) > r.Len() {
		return "", ErrTruncated
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", ErrTruncated
	}
	return string(b), nil
}
