package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

// Memory is an in-process CAS
type Memory struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
}

// NewMemory returns an empty in-process CAS
func NewMemory() *Memory {
	return &Memory{objects: make(map[cid.Cid][]byte)}
}

// Put implements CAS
func (m *Memory) Put(_ context.Context, data []byte) (cid.Cid, error) {
	id := ContentID(data)
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.objects[id]; ok {
		if !bytes.Equal(existing, data) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.objects[id] = append([]byte(nil), data...)
	return id, nil
}

// Get implements CAS
func (m *Memory) Get(_ context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Has implements CAS
func (m *Memory) Has(_ context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok, nil
}
