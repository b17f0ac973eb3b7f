package registry

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/Janus/internal/janus/inventory"
	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

// Reconcile copies live-inventory truth into the derived fields of records
// that already exist. It never creates records, never touches AllowAccess or
// Name, and leaves records absent from live alone; marking those is the
// sweep's job. recs is mutated in place and returned.
func Reconcile(recs Records, live map[string]types.InstalledCaller) Records {
	for id, c := range live {
		rec, ok := recs[id]
		if !ok {
			continue
		}
		c.Apply(&rec)
		recs[id] = rec
	}
	return recs
}

// Reconciler pairs the registry store with the inventory provider so every
// read sees derived fields that match what is installed right now.
type Reconciler struct {
	store    *Store
	provider inventory.Provider
	kinds    []string
}

// NewReconciler builds a Reconciler. kinds filters inventory entries by type;
// empty accepts all.
func NewReconciler(st *Store, p inventory.Provider, kinds []string) *Reconciler {
	return &Reconciler{store: st, provider: p, kinds: kinds}
}

func (r *Reconciler) Store() *Store { return r.store }

// Live fetches and indexes the current inventory.
func (r *Reconciler) Live(ctx context.Context) (map[string]types.InstalledCaller, error) {
	list, err := r.provider.ListInstalled(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInventoryUnavailable, err)
	}
	return inventory.Index(list, r.kinds), nil
}

// Load reads the stored registry and reconciles it against the inventory.
// The result is not persisted; callers decide whether to save it.
func (r *Reconciler) Load(ctx context.Context) (Records, map[string]types.InstalledCaller, error) {
	recs, err := r.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	live, err := r.Live(ctx)
	if err != nil {
		return nil, nil, err
	}
	return Reconcile(recs, live), live, nil
}
