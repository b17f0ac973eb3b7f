package store

import (
	"context"
	"errors"
)

// ErrUnavailable marks a substrate failure (I/O, closed database, cancelled
// write). Implementations wrap their underlying error with it.
var ErrUnavailable = errors.New("storage unavailable")

// KVStore is the durable key/value substrate. Values are opaque; callers
// always replace a value whole.
type KVStore interface {
	// Get returns the value under key. ok is false when nothing is stored.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
}
