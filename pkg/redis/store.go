package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

// Storage implements usermanager.Store on redis. Every key is written under
// a prefix so that Keys only sees the entries of one manager.
type Storage struct {
	db            redis.UniversalClient
	prefix        string
	ttl           time.Duration
	scanBatchSize int64
}

var _ usermanager.Store = (*Storage)(nil)

// StorageOption configures a Storage.
type StorageOption func(*Storage)

// WithKeyPrefix namespaces the keys of the storage.
func WithKeyPrefix(prefix string) StorageOption {
	return func(s *Storage) {
		s.prefix = prefix
	}
}

// WithTTL expires every value ttl after it was last written.
func WithTTL(ttl time.Duration) StorageOption {
	return func(s *Storage) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithScanBatchSize(n int64) StorageOption {
	return func(s *Storage) {
		if n > 0 {
			s.scanBatchSize = n
		}
	}
}

func NewStorage(client redis.UniversalClient, opts ...StorageOption) *Storage {
	s := &Storage{
		db:            client,
		prefix:        "oidc:",
		scanBatchSize: 500,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStorageWithConfig creates a Storage from the key layout in cfg.
func NewStorageWithConfig(client redis.UniversalClient, cfg Config) *Storage {
	return NewStorage(client,
		WithKeyPrefix(cfg.KeyPrefix),
		WithTTL(cfg.TTL),
		WithScanBatchSize(cfg.ScanBatchSize),
	)
}

// Get returns an empty string for missing keys.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	val, err := s.db.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	return s.db.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

// Remove deletes key atomically with GETDEL and returns the value it held.
func (s *Storage) Remove(ctx context.Context, key string) (string, error) {
	val, err := s.db.GetDel(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// Keys lists the keys of this storage without the prefix, using SCAN to
// avoid blocking redis.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.db.Scan(ctx, cursor, s.prefix+"*", s.scanBatchSize).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Close terminates the redis connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Conn returns the underlying redis client.
func (s *Storage) Conn() redis.UniversalClient {
	return s.db
}
