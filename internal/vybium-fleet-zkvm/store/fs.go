package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
)

// FS is a filesystem CAS. Objects live at root/<cid[:2]>/<cid> and are
// written read-only.
type FS struct {
	root string
}

// NewFS creates a filesystem CAS rooted at root, creating it if needed
func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, errors.New("store: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FS{root: root}, nil
}

// Put implements CAS
func (s *FS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id := ContentID(data)
	path := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if !os.IsExist(err) {
			return cid.Undef, err
		}
		existing, rerr := s.Get(ctx, id)
		if rerr != nil || !bytes.Equal(existing, data) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return cid.Undef, err
	}
	return id, nil
}

// Get implements CAS
func (s *FS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := checkContent(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Has implements CAS
func (s *FS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, ErrInvalidCID
	}
	_, err := os.Stat(s.pathFor(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *FS) pathFor(id cid.Cid) string {
	str := id.String()
	return filepath.Join(s.root, str[:2], str)
}
