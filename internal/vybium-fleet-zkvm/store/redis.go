package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/redis/go-redis/v9"
)

const redisPrefix = "vybium-fleet:cas:"

// Redis is a CAS backed by a Redis server. Keys are the CID string under a
// fixed prefix and never expire.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at addr
func NewRedis(addr, password string, db int) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("store: redis addr is required")
	}
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}, nil
}

// OpenRedis connects using a redis:// URL
func OpenRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// Put implements CAS
func (s *Redis) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id := ContentID(data)
	created, err := s.client.SetNX(ctx, redisPrefix+id.String(), data, 0).Result()
	if err != nil {
		return cid.Undef, err
	}
	if created {
		return id, nil
	}
	existing, err := s.Get(ctx, id)
	if err != nil || !bytes.Equal(existing, data) {
		return cid.Undef, ErrImmutable
	}
	return id, nil
}

// Get implements CAS
func (s *Redis) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	data, err := s.client.Get(ctx, redisPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := checkContent(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Has implements CAS
func (s *Redis) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, ErrInvalidCID
	}
	n, err := s.client.Exists(ctx, redisPrefix+id.String()).Result()
	return n > 0, err
}

// Close releases the client connections
func (s *Redis) Close() error {
	return s.client.Close()
}
