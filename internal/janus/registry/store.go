package registry

import (
	"context"
	"fmt"
	"log"

	"github.com/BrandonDHaskell/Janus/internal/codec"
	"github.com/BrandonDHaskell/Janus/internal/janus/store"
)

// DefaultKey is the substrate key holding the registry document.
const DefaultKey = "extension_access"

// Store persists the whole registry under one key. There are no partial
// writes: callers load, mutate, and save the full map.
type Store struct {
	kv     store.KVStore
	key    string
	logger *log.Logger
}

func NewStore(kv store.KVStore, key string, logger *log.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key, logger: logger}
}

func (s *Store) Key() string { return s.key }

// Load returns the stored registry, or an empty one if nothing has been
// saved yet. A missing document is logged as an error.
func (s *Store) Load(ctx context.Context) (Records, error) {
	return s.load(ctx, false)
}

// LoadDefaults is Load for the setting-defaults phase at startup, where a
// missing document is expected and not logged.
func (s *Store) LoadDefaults(ctx context.Context) (Records, error) {
	return s.load(ctx, true)
}

func (s *Store) load(ctx context.Context, settingDefaults bool) (Records, error) {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrStorageUnavailable, s.key, err)
	}
	if !ok {
		if !settingDefaults {
			s.logger.Printf("registry: no value stored under key=%s", s.key)
		}
		return Records{}, nil
	}

	recs := Records{}
	if len(data) > 0 {
		if err := codec.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", ErrInconsistentRecord, s.key, err)
		}
	}
	if err := recs.Validate(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Save replaces the stored registry with recs. On failure the previously
// stored document is left as it was.
func (s *Store) Save(ctx context.Context, recs Records) error {
	if recs == nil {
		recs = Records{}
	}
	if err := recs.Validate(); err != nil {
		return err
	}

	data, err := codec.Marshal(recs)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrInconsistentRecord, err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrStorageUnavailable, s.key, err)
	}
	return nil
}

// Clear removes the stored document entirely.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Clear(ctx, s.key); err != nil {
		return fmt.Errorf("%w: clear %s: %w", ErrStorageUnavailable, s.key, err)
	}
	return nil
}
