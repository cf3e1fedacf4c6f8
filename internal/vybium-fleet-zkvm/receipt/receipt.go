// Package receipt holds the receipt data model and its wire codec.
//
// A receipt is {version, image_id, journal, proof} in protobuf wire format:
//
//	1: version  (varint)
//	2: image_id (bytes, 32)
//	3: journal  (bytes)
//	4: proof    (bytes, encoded seal)
//
// Every field appears exactly once. Unknown and repeated fields are
// malformed, so one receipt has exactly one encoding and one content address.
package receipt

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
)

// Version is the receipt format version
const Version uint32 = 1

// MaxSize bounds decoded receipts
const MaxSize = 1 << 24

const (
	fieldVersion protowire.Number = 1
	fieldImageID protowire.Number = 2
	fieldJournal protowire.Number = 3
	fieldProof   protowire.Number = 4
)

var ErrMalformed = errors.New("receipt: malformed")

// Receipt is the output of one successful proving run
type Receipt struct {
	Version uint32
	ImageID core.Digest
	Journal []byte
	Proof   []byte
}

// New creates a receipt of the current version
func New(imageID core.Digest, journal, proof []byte) *Receipt {
	return &Receipt{
		Version: Version,
		ImageID: imageID,
		Journal: append([]byte(nil), journal...),
		Proof:   append([]byte(nil), proof...),
	}
}

// Clone returns a deep copy
func (r *Receipt) Clone() *Receipt {
	c := *r
	c.Journal = append([]byte(nil), r.Journal...)
	c.Proof = append([]byte(nil), r.Proof...)
	return &c
}

// Encode serializes the receipt
func (r *Receipt) Encode() []byte {
	b := make([]byte, 0, 48+len(r.Journal)+len(r.Proof))
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Version))
	b = protowire.AppendTag(b, fieldImageID, protowire.BytesType)
	b = protowire.AppendBytes(b, r.ImageID[:])
	b = protowire.AppendTag(b, fieldJournal, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Journal)
	b = protowire.AppendTag(b, fieldProof, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Proof)
	return b
}

// Decode parses a serialized receipt
func Decode(data []byte) (*Receipt, error) {
	if len(data) > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}

	r := &Receipt{}
	seen := make(map[protowire.Number]bool, 4)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]
		if seen[num] {
			return nil, fmt.Errorf("%w: repeated field %d", ErrMalformed, num)
		}
		seen[num] = true

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: version: %v", ErrMalformed, protowire.ParseError(n))
			}
			if v > uint64(^uint32(0)) {
				return nil, fmt.Errorf("%w: version %d", ErrMalformed, v)
			}
			r.Version = uint32(v)
			data = data[n:]
		case num == fieldImageID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: image id: %v", ErrMalformed, protowire.ParseError(n))
			}
			id, err := core.DigestFromBytes(v)
			if err != nil {
				return nil, fmt.Errorf("%w: image id: %v", ErrMalformed, err)
			}
			r.ImageID = id
			data = data[n:]
		case num == fieldJournal && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: journal: %v", ErrMalformed, protowire.ParseError(n))
			}
			r.Journal = append([]byte(nil), v...)
			data = data[n:]
		case num == fieldProof && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: proof: %v", ErrMalformed, protowire.ParseError(n))
			}
			r.Proof = append([]byte(nil), v...)
			data = data[n:]
		default:
			return nil, fmt.Errorf("%w: unexpected field %d (wire type %d)", ErrMalformed, num, typ)
		}
	}

	for _, f := range []protowire.Number{fieldVersion, fieldImageID, fieldJournal, fieldProof} {
		if !seen[f] {
			return nil, fmt.Errorf("%w: missing field %d", ErrMalformed, f)
		}
	}
	if r.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, r.Version)
	}
	return r, nil
}

// Digest is the content address of the encoded receipt
func (r *Receipt) Digest() core.Digest {
	return core.Sum(r.Encode())
}

// CID returns the receipt content address as a CIDv1
func (r *Receipt) CID() cid.Cid {
	return r.Digest().CID()
}
