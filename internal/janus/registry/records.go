package registry

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

// Records is the whole registry: caller id to record.
type Records map[string]types.AccessRecord

// Clone returns a deep copy; UninstalledTimeMS pointers are not shared.
func (r Records) Clone() Records {
	out := make(Records, len(r))
	for id, rec := range r {
		if rec.UninstalledTimeMS != nil {
			t := *rec.UninstalledTimeMS
			rec.UninstalledTimeMS = &t
		}
		out[id] = rec
	}
	return out
}

// Sorted lists records by name, then id.
func (r Records) Sorted() []types.AccessRecord {
	out := slices.Collect(maps.Values(r))
	slices.SortFunc(out, func(a, b types.AccessRecord) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Locked returns the self-record, if any.
func (r Records) Locked() (types.AccessRecord, bool) {
	for _, rec := range r {
		if rec.Locked {
			return rec, true
		}
	}
	return types.AccessRecord{}, false
}

// Validate checks the document-level invariants: every key equals its
// record's id, uninstall time is present exactly when uninstalled, and at
// most one record is locked.
func (r Records) Validate() error {
	locked := ""
	for key, rec := range r {
		if key != rec.ID {
			return fmt.Errorf("%w: key %q holds record %q", ErrKeyMismatch, key, rec.ID)
		}
		if rec.Uninstalled != (rec.UninstalledTimeMS != nil) {
			return fmt.Errorf("%w: %q uninstalled=%v with uninstalledTimeMS set=%v",
				ErrInconsistentRecord, key, rec.Uninstalled, rec.UninstalledTimeMS != nil)
		}
		if rec.Locked {
			if locked != "" {
				return fmt.Errorf("%w: both %q and %q are locked", ErrInconsistentRecord, locked, key)
			}
			locked = key
		}
	}
	return nil
}
