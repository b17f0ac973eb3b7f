package inventory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

// Static is an in-memory Provider. Tests and the dev server mutate it
// directly.
type Static struct {
	mu      sync.RWMutex
	callers []types.InstalledCaller
	err     error
}

func NewStatic(callers ...types.InstalledCaller) *Static {
	return &Static{callers: slices.Clone(callers)}
}

func (s *Static) ListInstalled(_ context.Context) ([]types.InstalledCaller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, s.err)
	}
	return slices.Clone(s.callers), nil
}

// Set replaces the whole listing.
func (s *Static) Set(callers ...types.InstalledCaller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callers = slices.Clone(callers)
}

// Remove drops the caller with the given id, as an uninstall would.
func (s *Static) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callers = slices.DeleteFunc(s.callers, func(c types.InstalledCaller) bool { return c.ID == id })
}

// SetErr makes ListInstalled fail until cleared with nil.
func (s *Static) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
