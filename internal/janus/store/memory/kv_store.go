package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/BrandonDHaskell/Janus/internal/janus/store"
)

// KVStore is an in-memory store.KVStore for tests and the "memory" backend.
// Values are copied on the way in and out.
type KVStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// failErr, when set, is returned (wrapped in store.ErrUnavailable) by
	// every call. Test hook for substrate outages.
	failErr error
}

func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string][]byte)}
}

func (s *KVStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failErr != nil {
		return nil, false, fmt.Errorf("%w: %w", store.ErrUnavailable, s.failErr)
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (s *KVStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, s.failErr)
	}
	s.data[key] = slices.Clone(value)
	return nil
}

func (s *KVStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, s.failErr)
	}
	delete(s.data, key)
	return nil
}

// SetFailure makes every subsequent call fail with err; nil restores service.
func (s *KVStore) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}
