package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/Janus/internal/janus/registry"
	"github.com/BrandonDHaskell/Janus/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

var (
	ErrInvalidCallerID = errors.New("caller id is required")
	ErrNotFound        = errors.New("caller not registered")
	// ErrUnknownCaller: neither registered nor currently installed.
	ErrUnknownCaller  = errors.New("unknown caller")
	ErrRekeyCollision = errors.New("new id already belongs to another caller")
	ErrLockedRecord   = errors.New("caller record is locked")
)

type Options struct {
	// SelfID names the extension that owns the registry. Its record is
	// created locked by EnsureDefaults.
	SelfID   string
	SelfName string

	// EnforceLock keeps the self-record from being deleted, rekeyed, denied
	// or swept. Off reproduces the unguarded behavior.
	EnforceLock bool

	// Location anchors sweep day boundaries. Nil means UTC.
	Location *time.Location

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// PolicyService is the access-policy API over the registry. Every mutation
// runs load, reconcile, mutate and save under one mutex, so concurrent
// callers never overwrite each other's changes. IsAllowAccess reads a
// snapshot refreshed on every load and save and does not take the mutex
// once the snapshot exists.
type PolicyService struct {
	mu     sync.Mutex
	rc     *registry.Reconciler
	audit  store.AuditEventStore
	logger *log.Logger
	opts   Options

	snapshot atomic.Pointer[registry.Records]
}

func NewPolicyService(rc *registry.Reconciler, audit store.AuditEventStore, opts Options, logger *log.Logger) *PolicyService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &PolicyService{rc: rc, audit: audit, logger: logger, opts: opts}
}

// ── Reads ────────────────────────────────────────────────────────────────────

// IsAllowAccess answers the authorization query. Anything short of a record
// with AllowAccess set, including a registry that cannot be read, is a deny.
func (s *PolicyService) IsAllowAccess(ctx context.Context, id string) bool {
	if !validID(id) {
		metricAccessChecks.WithLabelValues("deny").Inc()
		return false
	}

	snap := s.snapshot.Load()
	if snap == nil {
		if err := s.Refresh(ctx); err != nil {
			s.logger.Printf("access check %s: registry unreadable, denying: %v", id, err)
			metricAccessChecks.WithLabelValues("deny").Inc()
			return false
		}
		snap = s.snapshot.Load()
	}

	rec, ok := (*snap)[id]
	allowed := ok && rec.AllowAccess
	if allowed {
		metricAccessChecks.WithLabelValues("allow").Inc()
	} else {
		metricAccessChecks.WithLabelValues("deny").Inc()
	}
	return allowed
}

// Refresh reloads the snapshot from storage without consulting the
// inventory.
func (s *PolicyService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.rc.Store().Load(ctx)
	if err != nil {
		return err
	}
	s.publish(recs)
	return nil
}

// ListExtensions returns every record, reconciled against the inventory,
// sorted by name then id. Nothing is persisted.
func (s *PolicyService) ListExtensions(ctx context.Context) ([]types.AccessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, _, err := s.rc.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(recs)
	return recs.Sorted(), nil
}

func (s *PolicyService) GetExtension(ctx context.Context, id string) (types.AccessRecord, error) {
	if !validID(id) {
		return types.AccessRecord{}, ErrInvalidCallerID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, _, err := s.rc.Load(ctx)
	if err != nil {
		return types.AccessRecord{}, err
	}
	s.publish(recs)

	rec, ok := recs[id]
	if !ok {
		return types.AccessRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// ── Single-caller toggles ────────────────────────────────────────────────────

func (s *PolicyService) AllowAccess(ctx context.Context, id string) (types.AccessRecord, error) {
	return s.setAccess(ctx, id, true)
}

func (s *PolicyService) DisallowAccess(ctx context.Context, id string) (types.AccessRecord, error) {
	return s.setAccess(ctx, id, false)
}

// setAccess flips AllowAccess on an existing record. A caller with no record
// gets one synthesized from the inventory; a caller that is neither
// registered nor installed is ErrUnknownCaller.
func (s *PolicyService) setAccess(ctx context.Context, id string, allow bool) (types.AccessRecord, error) {
	if !validID(id) {
		return types.AccessRecord{}, ErrInvalidCallerID
	}

	var out types.AccessRecord
	err := s.mutate(ctx, opName(allow), func(recs registry.Records, live map[string]types.InstalledCaller) ([]store.AuditEvent, error) {
		rec, ok := recs[id]
		if !ok {
			c, installed := live[id]
			if !installed {
				return nil, fmt.Errorf("%w: %s", ErrUnknownCaller, id)
			}
			rec = c.NewRecord(allow)
		} else {
			if !allow && s.guarded(rec) {
				return nil, fmt.Errorf("%w: %s", ErrLockedRecord, id)
			}
			if rec.AllowAccess == allow {
				out = rec
				return nil, nil
			}
			rec.AllowAccess = allow
		}

		recs[id] = rec
		out = rec
		return []store.AuditEvent{accessEvent(id, allow, "")}, nil
	})
	return out, err
}

// ── Bulk toggles ─────────────────────────────────────────────────────────────

func (s *PolicyService) AllowAccessAllExtensions(ctx context.Context) (int, error) {
	return s.setAccessWhere(ctx, true, nil)
}

func (s *PolicyService) DisallowAccessAllExtensions(ctx context.Context) (int, error) {
	return s.setAccessWhere(ctx, false, nil)
}

func (s *PolicyService) AllowAccessSelectedExtensions(ctx context.Context, ids []string) (int, error) {
	return s.setAccessWhere(ctx, true, idSet(ids))
}

func (s *PolicyService) DisallowAccessSelectedExtensions(ctx context.Context, ids []string) (int, error) {
	return s.setAccessWhere(ctx, false, idSet(ids))
}

// setAccessWhere sets AllowAccess on every record in only (all records when
// only is nil) and returns how many actually changed. Unregistered ids are
// skipped.
func (s *PolicyService) setAccessWhere(ctx context.Context, allow bool, only map[string]struct{}) (int, error) {
	changed := 0
	err := s.mutate(ctx, opName(allow)+"_bulk", func(recs registry.Records, _ map[string]types.InstalledCaller) ([]store.AuditEvent, error) {
		var events []store.AuditEvent
		for id, rec := range recs {
			if only != nil {
				if _, ok := only[id]; !ok {
					continue
				}
			}
			if rec.AllowAccess == allow || (!allow && s.guarded(rec)) {
				continue
			}
			rec.AllowAccess = allow
			recs[id] = rec
			changed++
			events = append(events, accessEvent(id, allow, "bulk"))
		}
		return events, nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// ── Upsert / delete ──────────────────────────────────────────────────────────

// AddOrUpdateExtension inserts or updates the record for newID. When oldID is
// set and differs from newID the record is rekeyed: the old entry is removed
// and the new one inserted in the same save. Rekeying onto an id that
// already has a record fails with ErrRekeyCollision.
func (s *PolicyService) AddOrUpdateExtension(ctx context.Context, oldID, newID, name string, allow bool) (types.AccessRecord, error) {
	name = strings.TrimSpace(name)
	if !validID(newID) || (oldID != "" && !validID(oldID)) {
		return types.AccessRecord{}, ErrInvalidCallerID
	}
	rekey := oldID != "" && oldID != newID

	var out types.AccessRecord
	op := "upsert"
	if rekey {
		op = "rekey"
	}
	err := s.mutate(ctx, op, func(recs registry.Records, live map[string]types.InstalledCaller) ([]store.AuditEvent, error) {
		var events []store.AuditEvent

		rec, exists := recs[newID]
		if rekey {
			if exists {
				return nil, fmt.Errorf("%w: %s -> %s", ErrRekeyCollision, oldID, newID)
			}
			if old, ok := recs[oldID]; ok {
				if s.guarded(old) {
					return nil, fmt.Errorf("%w: %s", ErrLockedRecord, oldID)
				}
				delete(recs, oldID)
				events = append(events, store.AuditEvent{CallerID: oldID, Action: store.AuditRekey, Detail: "to " + newID})
			}
			rec = types.AccessRecord{}
		}

		if exists && !allow && s.guarded(rec) {
			return nil, fmt.Errorf("%w: %s", ErrLockedRecord, newID)
		}

		rec.ID = newID
		rec.Name = name
		rec.AllowAccess = allow
		if c, ok := live[newID]; ok {
			c.Apply(&rec)
			if rec.Uninstalled {
				rec.Reinstate()
			}
		}

		recs[newID] = rec
		out = rec
		events = append(events, store.AuditEvent{
			CallerID: newID, Action: store.AuditUpsert, AllowAccess: &allow, Detail: name,
		})
		return events, nil
	})
	return out, err
}

// DeleteExtension removes one record and returns it.
func (s *PolicyService) DeleteExtension(ctx context.Context, id string) (types.AccessRecord, error) {
	if !validID(id) {
		return types.AccessRecord{}, ErrInvalidCallerID
	}

	var out types.AccessRecord
	err := s.mutate(ctx, "delete", func(recs registry.Records, _ map[string]types.InstalledCaller) ([]store.AuditEvent, error) {
		rec, ok := recs[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if s.guarded(rec) {
			return nil, fmt.Errorf("%w: %s", ErrLockedRecord, id)
		}
		delete(recs, id)
		out = rec
		return []store.AuditEvent{{CallerID: id, Action: store.AuditDelete}}, nil
	})
	return out, err
}

// DeleteSelectedExtensions removes every listed record that exists and
// returns how many were removed. Unregistered ids, and the locked record
// when guarded, are skipped.
func (s *PolicyService) DeleteSelectedExtensions(ctx context.Context, ids []string) (int, error) {
	removed := 0
	err := s.mutate(ctx, "delete_bulk", func(recs registry.Records, _ map[string]types.InstalledCaller) ([]store.AuditEvent, error) {
		var events []store.AuditEvent
		for id := range idSet(ids) {
			rec, ok := recs[id]
			if !ok || s.guarded(rec) {
				continue
			}
			delete(recs, id)
			removed++
			events = append(events, store.AuditEvent{CallerID: id, Action: store.AuditDelete, Detail: "bulk"})
		}
		return events, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

// Sweep runs one lifecycle pass with the given grace period and persists the
// result once. A negative grace returns immediately without reading
// anything. On any failure nothing is saved.
func (s *PolicyService) Sweep(ctx context.Context, graceDays int) (registry.SweepResult, error) {
	if graceDays < 0 {
		metricSweeps.WithLabelValues("disabled").Inc()
		return registry.SweepResult{}, nil
	}

	var res registry.SweepResult
	err := s.mutate(ctx, "sweep", func(recs registry.Records, live map[string]types.InstalledCaller) ([]store.AuditEvent, error) {
		res = registry.Sweep(recs, live, registry.SweepOptions{
			GraceDays:  graceDays,
			Now:        s.opts.Now(),
			Location:   s.opts.Location,
			KeepLocked: s.opts.EnforceLock,
		})

		var events []store.AuditEvent
		for _, id := range res.Marked {
			events = append(events, store.AuditEvent{CallerID: id, Action: store.AuditSweepMark})
		}
		for _, id := range res.Reinstated {
			events = append(events, store.AuditEvent{CallerID: id, Action: store.AuditSweepRestore})
		}
		for _, id := range res.Removed {
			events = append(events, store.AuditEvent{
				CallerID: id, Action: store.AuditSweepRemove,
				Detail: fmt.Sprintf("grace_days=%d", graceDays),
			})
		}
		return events, nil
	})
	if err != nil {
		metricSweeps.WithLabelValues("error").Inc()
		return registry.SweepResult{}, err
	}

	metricSweeps.WithLabelValues("ok").Inc()
	metricSweepRemoved.Add(float64(len(res.Removed)))
	return res, nil
}

// EnsureDefaults runs at startup. It loads the registry in setting-defaults
// mode and makes sure the self-record exists, is the only locked record and
// is allowed. It saves only if something changed.
func (s *PolicyService) EnsureDefaults(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.rc.Store()
	recs, err := st.LoadDefaults(ctx)
	if err != nil {
		return err
	}

	selfID := strings.TrimSpace(s.opts.SelfID)
	if selfID == "" {
		s.publish(recs)
		return nil
	}

	changed := false
	for id, rec := range recs {
		if rec.Locked && id != selfID {
			rec.Locked = false
			recs[id] = rec
			changed = true
		}
	}

	self, ok := recs[selfID]
	if !ok {
		self = types.AccessRecord{ID: selfID, Name: s.opts.SelfName}
		changed = true
	}
	if !self.Locked || !self.AllowAccess {
		self.Locked = true
		self.AllowAccess = true
		changed = true
	}
	recs[selfID] = self

	if changed {
		if err := st.Save(ctx, recs); err != nil {
			return err
		}
		s.logger.Printf("registry: self-record %s ensured", selfID)
	}
	s.publish(recs)
	return nil
}

// ── internals ────────────────────────────────────────────────────────────────

// mutateFn edits recs in place and returns audit events for what it changed.
// No events means nothing changed and nothing is saved.
type mutateFn func(recs registry.Records, live map[string]types.InstalledCaller) ([]store.AuditEvent, error)

func (s *PolicyService) mutate(ctx context.Context, op string, fn mutateFn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, live, err := s.rc.Load(ctx)
	if err != nil {
		return err
	}

	events, err := fn(recs, live)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		s.publish(recs)
		return nil
	}

	if err := s.rc.Store().Save(ctx, recs); err != nil {
		return err
	}
	s.publish(recs)
	metricMutations.WithLabelValues(op).Inc()

	now := s.opts.Now().UTC()
	for _, ev := range events {
		if ev.At.IsZero() {
			ev.At = now
		}
		s.recordEvent(ctx, ev)
	}
	return nil
}

// publish swaps in a private copy of recs for lock-free reads.
func (s *PolicyService) publish(recs registry.Records) {
	snap := recs.Clone()
	s.snapshot.Store(&snap)
	metricRecords.Set(float64(len(snap)))
}

// recordEvent appends to the audit log. A failed audit write is logged and
// otherwise ignored; the registry change has already been saved.
func (s *PolicyService) recordEvent(ctx context.Context, ev store.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordEvent(ctx, ev); err != nil {
		s.logger.Printf("audit %s %s: %v", ev.Action, ev.CallerID, err)
	}
}

func (s *PolicyService) guarded(rec types.AccessRecord) bool {
	return s.opts.EnforceLock && rec.Locked
}

func accessEvent(id string, allow bool, detail string) store.AuditEvent {
	action := store.AuditDisallow
	if allow {
		action = store.AuditAllow
	}
	return store.AuditEvent{CallerID: id, Action: action, AllowAccess: &allow, Detail: detail}
}

func opName(allow bool) string {
	if allow {
		return "allow"
	}
	return "disallow"
}

// validID reports whether id can name a record. Ids are opaque: surrounding
// whitespace is not stripped, it makes the id invalid.
func validID(id string) bool {
	return id != "" && strings.TrimSpace(id) == id
}

func idSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if validID(id) {
			out[id] = struct{}{}
		}
	}
	return out
}
