package preferences

import (
	"context"
	"slices"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps records in process memory. Records never expire.
type MemoryStore struct {
	c *cache.Cache
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New(cache.NoExpiration, 0)}
}

func memoryKey(namespace, userID string) string {
	return namespace + "/" + userID
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, namespace, userID string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := s.c.Get(memoryKey(namespace, userID))
	if !ok {
		return nil, false, nil
	}
	data, _ := v.([]byte)
	return slices.Clone(data), true, nil
}

// Put implements Store
func (s *MemoryStore) Put(ctx context.Context, namespace, userID string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.Set(memoryKey(namespace, userID), slices.Clone(value), cache.NoExpiration)
	return nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	s.c.Flush()
	return nil
}
