package usermanager

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Store persists users and in-flight protocol state as opaque strings.
// Get returns an empty string and no error for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key and returns the value it held.
	Remove(ctx context.Context, key string) (string, error)
	Keys(ctx context.Context) ([]string, error)
}

// MemoryStore is a bounded in-process Store with an optional entry TTL.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.LRU[string, string]
}

// NewMemoryStore creates a MemoryStore holding at most size entries. A zero
// ttl keeps entries until they are evicted by size.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = 1024
	}
	return &MemoryStore{cache: lru.NewLRU[string, string](size, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	v, _ := s.cache.Get(key)
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.cache.Add(key, value)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Peek(key)
	if !ok {
		return "", nil
	}
	s.cache.Remove(key)
	return v, nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	return s.cache.Keys(), nil
}

type prefixStore struct {
	Store
	prefix string
}

// PrefixStore narrows s to the keys under prefix, so several managers can
// keep users in one backing store without seeing each other's entries.
func PrefixStore(s Store, prefix string) Store {
	return prefixStore{Store: s, prefix: prefix}
}

func (s prefixStore) Get(ctx context.Context, key string) (string, error) {
	return s.Store.Get(ctx, s.prefix+key)
}

func (s prefixStore) Set(ctx context.Context, key, value string) error {
	return s.Store.Set(ctx, s.prefix+key, value)
}

func (s prefixStore) Remove(ctx context.Context, key string) (string, error) {
	return s.Store.Remove(ctx, s.prefix+key)
}

func (s prefixStore) Keys(ctx context.Context) ([]string, error) {
	all, err := s.Store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if rest, ok := strings.CutPrefix(k, s.prefix); ok {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}
