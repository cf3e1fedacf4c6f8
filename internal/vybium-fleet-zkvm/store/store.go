// Package store persists encoded receipts in content-addressed storage.
//
// Objects are keyed by the CIDv1 (raw codec, sha2-256) of their bytes. Put is
// idempotent, stored objects are immutable, and Get checks the bytes it
// returns against the requested CID.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/receipt"
)

var (
	ErrNotFound    = errors.New("store: not found")
	ErrInvalidCID  = errors.New("store: invalid cid")
	ErrCIDMismatch = errors.New("store: cid mismatch")
	ErrImmutable   = errors.New("store: immutable object mismatch")
)

// CAS is a content-addressable store
type CAS interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}

// ContentID returns the CID of data
func ContentID(data []byte) cid.Cid {
	return core.Sum(data).CID()
}

// checkContent verifies that data hashes to id
func checkContent(id cid.Cid, data []byte) error {
	if ContentID(data) != id {
		return ErrCIDMismatch
	}
	return nil
}

// PutReceipt stores the encoding of rc
func PutReceipt(ctx context.Context, cas CAS, rc *receipt.Receipt) (cid.Cid, error) {
	return cas.Put(ctx, rc.Encode())
}

// GetReceipt loads and decodes the receipt stored under id
func GetReceipt(ctx context.Context, cas CAS, id cid.Cid) (*receipt.Receipt, error) {
	data, err := cas.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, err := receipt.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("stored object %s: %w", id, err)
	}
	return rc, nil
}

// Open returns the store named by location: a redis:// or rediss:// URL, or
// a filesystem directory
func Open(location string) (CAS, error) {
	if strings.HasPrefix(location, "redis://") || strings.HasPrefix(location, "rediss://") {
		r, err := OpenRedis(location)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	fs, err := NewFS(location)
	if err != nil {
		return nil, err
	}
	return fs, nil
}
