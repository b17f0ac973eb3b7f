package registry

import (
	"time"

	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

// SweepOptions configures one sweep pass.
type SweepOptions struct {
	// GraceDays < 0 disables the sweep; 0 removes a record in the pass that
	// first finds it missing.
	GraceDays int
	Now       time.Time
	// Location anchors day boundaries. Nil means UTC.
	Location *time.Location
	// KeepLocked exempts the self-record from marking and removal.
	KeepLocked bool
}

// SweepResult lists what one pass changed.
type SweepResult struct {
	Marked     []string
	Reinstated []string
	Removed    []string
}

// Changed reports whether the pass mutated the registry at all.
func (r SweepResult) Changed() bool {
	return len(r.Marked)+len(r.Reinstated)+len(r.Removed) > 0
}

// Cutoff is the start of the calendar day graceDays whole days before now's
// day, in loc. A record uninstalled before the cutoff has been gone through
// at least graceDays day boundaries.
func Cutoff(now time.Time, graceDays int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day()-graceDays, 0, 0, 0, 0, loc)
}

// Sweep ages records against live in place. Records present in live that
// were pending removal are reinstated. Records absent from live are marked
// uninstalled at opts.Now (an existing mark keeps its original time), and a
// marked record is deleted once its uninstall time falls before Cutoff, or
// at once when GraceDays is 0.
func Sweep(recs Records, live map[string]types.InstalledCaller, opts SweepOptions) SweepResult {
	var res SweepResult
	if opts.GraceDays < 0 {
		return res
	}

	nowMS := opts.Now.UnixMilli()
	cutoffMS := Cutoff(opts.Now, opts.GraceDays, opts.Location).UnixMilli()

	for id, rec := range recs {
		if opts.KeepLocked && rec.Locked {
			continue
		}

		c, installed := live[id]
		switch {
		case installed && rec.Uninstalled:
			rec.Reinstate()
			c.Apply(&rec)
			recs[id] = rec
			res.Reinstated = append(res.Reinstated, id)
			continue
		case installed:
			continue
		case !rec.Uninstalled:
			rec.MarkUninstalled(nowMS, types.UninstalledAutoSweep)
			recs[id] = rec
			res.Marked = append(res.Marked, id)
		}

		if opts.GraceDays == 0 || *rec.UninstalledTimeMS < cutoffMS {
			delete(recs, id)
			res.Removed = append(res.Removed, id)
		}
	}
	return res
}
