// Package inventory supplies the live list of installed callers.
//
// A provider failure is always an error. No provider reports "nothing
// installed" because it could not look.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

// ErrUnavailable is wrapped by providers that could not produce a listing.
var ErrUnavailable = errors.New("inventory unavailable")

type Provider interface {
	ListInstalled(ctx context.Context) ([]types.InstalledCaller, error)
}

// Index maps a listing by caller id, keeping only entries whose type is in
// kinds. An empty kinds accepts every entry. Later duplicates win.
func Index(list []types.InstalledCaller, kinds []string) map[string]types.InstalledCaller {
	out := make(map[string]types.InstalledCaller, len(list))
	for _, c := range list {
		if c.ID == "" || !relevant(c.Type, kinds) {
			continue
		}
		out[c.ID] = c
	}
	return out
}

func relevant(kind string, kinds []string) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Unconfigured is the provider for a server started without an inventory
// source. Every listing fails with ErrUnavailable, so sweeps and mutations
// that need the inventory abort instead of reading "nothing installed".
type Unconfigured struct{}

func (Unconfigured) ListInstalled(_ context.Context) ([]types.InstalledCaller, error) {
	return nil, fmt.Errorf("%w: no inventory source configured", ErrUnavailable)
}
