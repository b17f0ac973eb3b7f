package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Janus/internal/janus/inventory"
	"github.com/BrandonDHaskell/Janus/internal/janus/registry"
	"github.com/BrandonDHaskell/Janus/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/internal/janus/store/memory"
	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fixture struct {
	svc   *service.PolicyService
	kv    *memory.KVStore
	inv   *inventory.Static
	audit *memory.AuditEventStore
	st    *registry.Store
	clock *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newFixture builds a PolicyService backed by in-memory stores. The lock
// guard is on and the self id is "self".
func newFixture(t *testing.T, installed ...types.InstalledCaller) *fixture {
	t.Helper()
	return newFixtureWith(t, service.Options{SelfID: "self", SelfName: "Janus", EnforceLock: true}, installed...)
}

func newFixtureWith(t *testing.T, opts service.Options, installed ...types.InstalledCaller) *fixture {
	t.Helper()

	kv := memory.NewKVStore()
	inv := inventory.NewStatic(installed...)
	audit := memory.NewAuditEventStore()
	st := registry.NewStore(kv, "", silentLogger())
	rc := registry.NewReconciler(st, inv, []string{"extension"})
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	opts.Now = clock.Now

	return &fixture{
		svc:   service.NewPolicyService(rc, audit, opts, silentLogger()),
		kv:    kv,
		inv:   inv,
		audit: audit,
		st:    st,
		clock: clock,
	}
}

func (f *fixture) seed(t *testing.T, recs ...types.AccessRecord) {
	t.Helper()
	m := registry.Records{}
	for _, r := range recs {
		m[r.ID] = r
	}
	if err := f.st.Save(context.Background(), m); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (f *fixture) stored(t *testing.T) registry.Records {
	t.Helper()
	recs, err := f.st.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return recs
}

func ext(id, name string, enabled bool) types.InstalledCaller {
	return types.InstalledCaller{ID: id, Name: name, Enabled: enabled, Type: "extension", Version: "1.0"}
}

// ── IsAllowAccess ────────────────────────────────────────────────────────────

func TestIsAllowAccess_FailClosedForUnknownIDs(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a", AllowAccess: true})

	for _, id := range []string{"ext-x", "", "  ", "EXT-A", " ext-a ", "ext-a\n"} {
		if f.svc.IsAllowAccess(context.Background(), id) {
			t.Errorf("expected deny for %q", id)
		}
	}
	if !f.svc.IsAllowAccess(context.Background(), "ext-a") {
		t.Error("expected allow for ext-a")
	}
}

func TestIsAllowAccess_StorageDownDenies(t *testing.T) {
	f := newFixture(t)
	f.kv.SetFailure(errors.New("offline"))

	if f.svc.IsAllowAccess(context.Background(), "ext-a") {
		t.Error("expected deny when registry cannot be read")
	}
}

func TestIsAllowAccess_SeesMutationsImmediately(t *testing.T) {
	f := newFixture(t, ext("ext-a", "Alpha", true))
	ctx := context.Background()

	if f.svc.IsAllowAccess(ctx, "ext-a") {
		t.Fatal("expected deny before any record exists")
	}
	if _, err := f.svc.AllowAccess(ctx, "ext-a"); err != nil {
		t.Fatalf("AllowAccess: %v", err)
	}
	if !f.svc.IsAllowAccess(ctx, "ext-a") {
		t.Error("expected allow after AllowAccess")
	}
}

// ── Allow / disallow one ─────────────────────────────────────────────────────

func TestAllowAccess_ExistingRecordFlipsOnlyAllow(t *testing.T) {
	f := newFixture(t, ext("ext-a", "Alpha", true))
	f.seed(t, types.AccessRecord{ID: "ext-a", Name: "Custom", Installed: true})

	rec, err := f.svc.AllowAccess(context.Background(), "ext-a")
	if err != nil {
		t.Fatalf("AllowAccess: %v", err)
	}
	if !rec.AllowAccess || rec.Name != "Custom" {
		t.Errorf("unexpected record %+v", rec)
	}
	if got := f.stored(t)["ext-a"]; !got.AllowAccess || got.Version != "1.0" {
		t.Errorf("expected persisted allow with reconciled version, got %+v", got)
	}
}

func TestAllowAccess_SynthesizesRecordForInstalledCaller(t *testing.T) {
	f := newFixture(t, types.InstalledCaller{
		ID: "ext-a", Name: "Alpha", ShortName: "A", Description: "d",
		Version: "2.1", VersionName: "2.1 beta", Enabled: false, Type: "extension",
	})

	rec, err := f.svc.DisallowAccess(context.Background(), "ext-a")
	if err != nil {
		t.Fatalf("DisallowAccess: %v", err)
	}

	want := types.AccessRecord{
		ID: "ext-a", Name: "Alpha", ShortName: "A", Description: "d",
		Version: "2.1", VersionName: "2.1 beta", Disabled: true, Installed: true,
	}
	if rec != want {
		t.Errorf("got %+v, want %+v", rec, want)
	}
	if _, ok := f.stored(t)["ext-a"]; !ok {
		t.Error("expected synthesized record to be persisted")
	}
}

func TestAllowAccess_UnknownCallerFails(t *testing.T) {
	f := newFixture(t, types.InstalledCaller{ID: "theme-x", Type: "theme"})

	for _, id := range []string{"ghost", "theme-x"} {
		_, err := f.svc.AllowAccess(context.Background(), id)
		if !errors.Is(err, service.ErrUnknownCaller) {
			t.Errorf("%s: expected ErrUnknownCaller, got %v", id, err)
		}
	}
	if len(f.stored(t)) != 0 {
		t.Error("expected nothing persisted")
	}
}

func TestAllowAccess_EmptyIDInvalid(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.AllowAccess(context.Background(), " "); !errors.Is(err, service.ErrInvalidCallerID) {
		t.Errorf("expected ErrInvalidCallerID, got %v", err)
	}
}

func TestPaddedIDsAreInvalidNotNormalized(t *testing.T) {
	f := newFixture(t, ext("ext-a", "Alpha", true))
	f.seed(t, types.AccessRecord{ID: "ext-a", Name: "Alpha", Installed: true})
	ctx := context.Background()

	if _, err := f.svc.AllowAccess(ctx, " ext-a "); !errors.Is(err, service.ErrInvalidCallerID) {
		t.Errorf("AllowAccess: expected ErrInvalidCallerID, got %v", err)
	}
	if _, err := f.svc.GetExtension(ctx, "ext-a "); !errors.Is(err, service.ErrInvalidCallerID) {
		t.Errorf("GetExtension: expected ErrInvalidCallerID, got %v", err)
	}
	if _, err := f.svc.AddOrUpdateExtension(ctx, "", "\text-a", "Alpha", true); !errors.Is(err, service.ErrInvalidCallerID) {
		t.Errorf("AddOrUpdateExtension new id: expected ErrInvalidCallerID, got %v", err)
	}
	if _, err := f.svc.AddOrUpdateExtension(ctx, " ext-a", "ext-b", "Beta", true); !errors.Is(err, service.ErrInvalidCallerID) {
		t.Errorf("AddOrUpdateExtension old id: expected ErrInvalidCallerID, got %v", err)
	}
	if _, err := f.svc.DeleteExtension(ctx, " ext-a"); !errors.Is(err, service.ErrInvalidCallerID) {
		t.Errorf("DeleteExtension: expected ErrInvalidCallerID, got %v", err)
	}
	if n, err := f.svc.AllowAccessSelectedExtensions(ctx, []string{" ext-a "}); err != nil || n != 0 {
		t.Errorf("AllowAccessSelectedExtensions: expected 0 changes, got %d, %v", n, err)
	}

	recs := f.stored(t)
	if len(recs) != 1 {
		t.Fatalf("expected only ext-a, got %v", recs)
	}
	if recs["ext-a"].AllowAccess {
		t.Error("padded id must not grant access to ext-a")
	}
}

func TestAllowAccess_InventoryDownPropagates(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a"})
	f.inv.SetErr(errors.New("management API down"))

	_, err := f.svc.AllowAccess(context.Background(), "ext-a")
	if !errors.Is(err, registry.ErrInventoryUnavailable) {
		t.Errorf("expected ErrInventoryUnavailable, got %v", err)
	}
}

func TestAllowAccess_StorageDownLeavesPreviousState(t *testing.T) {
	f := newFixture(t, ext("ext-a", "Alpha", true))
	f.seed(t, types.AccessRecord{ID: "ext-a"})

	f.kv.SetFailure(errors.New("quota"))
	_, err := f.svc.AllowAccess(context.Background(), "ext-a")
	if !errors.Is(err, registry.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	f.kv.SetFailure(nil)
	if f.stored(t)["ext-a"].AllowAccess {
		t.Error("failed save must not change stored state")
	}
}

// ── Bulk toggles ─────────────────────────────────────────────────────────────

func TestAllowAccessAll_IdempotentCount(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		types.AccessRecord{ID: "ext-a"},
		types.AccessRecord{ID: "ext-b", AllowAccess: true},
		types.AccessRecord{ID: "ext-c"},
	)
	ctx := context.Background()

	n, err := f.svc.AllowAccessAllExtensions(ctx)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 changed, got %d", n)
	}

	n, err = f.svc.AllowAccessAllExtensions(ctx)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 changed on second call, got %d", n)
	}
}

func TestDisallowAccessAll_SkipsLockedRecord(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		types.AccessRecord{ID: "self", AllowAccess: true, Locked: true},
		types.AccessRecord{ID: "ext-a", AllowAccess: true},
	)

	n, err := f.svc.DisallowAccessAllExtensions(context.Background())
	if err != nil {
		t.Fatalf("DisallowAccessAll: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 changed, got %d", n)
	}
	recs := f.stored(t)
	if !recs["self"].AllowAccess {
		t.Error("locked self-record must stay allowed")
	}
	if recs["ext-a"].AllowAccess {
		t.Error("expected ext-a disallowed")
	}
}

func TestDisallowAccessAll_UnguardedDisallowsLocked(t *testing.T) {
	f := newFixtureWith(t, service.Options{EnforceLock: false})
	f.seed(t, types.AccessRecord{ID: "self", AllowAccess: true, Locked: true})

	n, err := f.svc.DisallowAccessAllExtensions(context.Background())
	if err != nil {
		t.Fatalf("DisallowAccessAll: %v", err)
	}
	if n != 1 || f.stored(t)["self"].AllowAccess {
		t.Errorf("expected locked record disallowed without guard, n=%d", n)
	}
}

func TestAllowAccessSelected_SkipsUnregistered(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a"}, types.AccessRecord{ID: "ext-b"})

	n, err := f.svc.AllowAccessSelectedExtensions(context.Background(), []string{"ext-a", "ext-x", "ext-a"})
	if err != nil {
		t.Fatalf("AllowAccessSelected: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 changed, got %d", n)
	}
	recs := f.stored(t)
	if !recs["ext-a"].AllowAccess || recs["ext-b"].AllowAccess {
		t.Errorf("unexpected state: %+v", recs)
	}
	if _, ok := recs["ext-x"]; ok {
		t.Error("unregistered id must not be created")
	}
}

func TestDisallowAccessSelected_CountsOnlyChanges(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a", AllowAccess: true}, types.AccessRecord{ID: "ext-b"})

	n, err := f.svc.DisallowAccessSelectedExtensions(context.Background(), []string{"ext-a", "ext-b"})
	if err != nil {
		t.Fatalf("DisallowAccessSelected: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 changed, got %d", n)
	}
}

func TestBulkNoChange_DoesNotSave(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a", AllowAccess: true})

	before := len(f.audit.Events())
	n, err := f.svc.AllowAccessAllExtensions(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}
	if len(f.audit.Events()) != before {
		t.Error("no-op must not write audit events")
	}
}

// ── AddOrUpdate ──────────────────────────────────────────────────────────────

func TestAddOrUpdate_InsertOnEmptyRegistry(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.AddOrUpdateExtension(context.Background(), "", "ext-b", "Beta", true)
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	if rec.ID != "ext-b" || rec.Name != "Beta" || !rec.AllowAccess {
		t.Errorf("unexpected record %+v", rec)
	}

	recs := f.stored(t)
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(recs))
	}
	got := recs["ext-b"]
	if got.ID != "ext-b" || got.Name != "Beta" || !got.AllowAccess {
		t.Errorf("unexpected stored record %+v", got)
	}
}

func TestAddOrUpdate_UpdateKeepsDerivedFields(t *testing.T) {
	f := newFixture(t, ext("ext-a", "Alpha", true))
	f.seed(t, types.AccessRecord{ID: "ext-a", Name: "Alpha", Installed: true, Version: "1.0"})

	rec, err := f.svc.AddOrUpdateExtension(context.Background(), "ext-a", "ext-a", "Renamed", true)
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	if rec.Name != "Renamed" || !rec.AllowAccess || !rec.Installed || rec.Version != "1.0" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestAddOrUpdate_RekeyMovesRecord(t *testing.T) {
	f := newFixture(t, ext("ext-new", "New", true))
	f.seed(t, types.AccessRecord{ID: "ext-old", Name: "Old", AllowAccess: true})

	rec, err := f.svc.AddOrUpdateExtension(context.Background(), "ext-old", "ext-new", "New Name", true)
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	if rec.ID != "ext-new" || !rec.Installed {
		t.Errorf("unexpected record %+v", rec)
	}

	recs := f.stored(t)
	if _, ok := recs["ext-old"]; ok {
		t.Error("old key must be gone after rekey")
	}
	if recs["ext-new"].Name != "New Name" {
		t.Errorf("expected new record, got %+v", recs["ext-new"])
	}
}

func TestAddOrUpdate_RekeyCollisionRejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a", Name: "A"}, types.AccessRecord{ID: "ext-b", Name: "B", AllowAccess: true})

	_, err := f.svc.AddOrUpdateExtension(context.Background(), "ext-a", "ext-b", "A2", false)
	if !errors.Is(err, service.ErrRekeyCollision) {
		t.Fatalf("expected ErrRekeyCollision, got %v", err)
	}

	recs := f.stored(t)
	if recs["ext-a"].Name != "A" || recs["ext-b"].Name != "B" || !recs["ext-b"].AllowAccess {
		t.Errorf("collision must leave both records untouched: %+v", recs)
	}
}

func TestAddOrUpdate_LockedRecordGuarded(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "self", Name: "Janus", AllowAccess: true, Locked: true})
	ctx := context.Background()

	if _, err := f.svc.AddOrUpdateExtension(ctx, "self", "other", "X", true); !errors.Is(err, service.ErrLockedRecord) {
		t.Errorf("rekey: expected ErrLockedRecord, got %v", err)
	}
	if _, err := f.svc.AddOrUpdateExtension(ctx, "", "self", "Janus", false); !errors.Is(err, service.ErrLockedRecord) {
		t.Errorf("deny: expected ErrLockedRecord, got %v", err)
	}

	rec, err := f.svc.AddOrUpdateExtension(ctx, "", "self", "Janus Renamed", true)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if !rec.Locked || rec.Name != "Janus Renamed" {
		t.Errorf("rename must keep lock: %+v", rec)
	}
}

func TestAddOrUpdate_ReinstatesWhenInstalled(t *testing.T) {
	f := newFixture(t, ext("ext-a", "Alpha", true))
	at := f.clock.Now().Add(-time.Hour).UnixMilli()
	f.seed(t, types.AccessRecord{ID: "ext-a", Uninstalled: true, UninstalledTimeMS: &at,
		UninstalledType: types.UninstalledAutoSweep})

	rec, err := f.svc.AddOrUpdateExtension(context.Background(), "", "ext-a", "Alpha", true)
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	if rec.Uninstalled || rec.UninstalledTimeMS != nil {
		t.Errorf("expected reinstated record, got %+v", rec)
	}
}

// ── Delete ───────────────────────────────────────────────────────────────────

func TestDeleteExtension_ReturnsDeletedRecord(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a", Name: "Alpha", AllowAccess: true})

	rec, err := f.svc.DeleteExtension(context.Background(), "ext-a")
	if err != nil {
		t.Fatalf("DeleteExtension: %v", err)
	}
	if rec.Name != "Alpha" {
		t.Errorf("expected deleted record returned, got %+v", rec)
	}
	if len(f.stored(t)) != 0 {
		t.Error("expected empty registry")
	}
	if f.svc.IsAllowAccess(context.Background(), "ext-a") {
		t.Error("deleted caller must be denied")
	}

	if _, err := f.svc.DeleteExtension(context.Background(), "ext-a"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteExtension_LockedRefused(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "self", Locked: true, AllowAccess: true})

	if _, err := f.svc.DeleteExtension(context.Background(), "self"); !errors.Is(err, service.ErrLockedRecord) {
		t.Errorf("expected ErrLockedRecord, got %v", err)
	}
}

func TestDeleteSelected_CountsExisting(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a"}, types.AccessRecord{ID: "self", Locked: true})

	n, err := f.svc.DeleteSelectedExtensions(context.Background(), []string{"ext-a", "ext-x", "self"})
	if err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	recs := f.stored(t)
	if _, ok := recs["ext-a"]; ok {
		t.Error("expected ext-a removed")
	}
	if _, ok := recs["self"]; !ok {
		t.Error("locked record must survive bulk delete")
	}
}

// ── Sweep ────────────────────────────────────────────────────────────────────

func TestSweep_ScenarioMarkThenRemove(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a", AllowAccess: true})
	ctx := context.Background()
	t0 := f.clock.Now()

	res, err := f.svc.Sweep(ctx, 2)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(res.Removed) != 0 {
		t.Errorf("expected removedCount=0, got %d", len(res.Removed))
	}
	a := f.stored(t)["ext-a"]
	if !a.Uninstalled || a.UninstalledTimeMS == nil || *a.UninstalledTimeMS != t0.UnixMilli() {
		t.Fatalf("expected uninstalled at T, got %+v", a)
	}

	f.clock.Advance(72 * time.Hour)
	res, err = f.svc.Sweep(ctx, 2)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(res.Removed) != 1 {
		t.Errorf("expected removedCount=1, got %d", len(res.Removed))
	}
	if _, ok := f.stored(t)["ext-a"]; ok {
		t.Error("expected ext-a deleted")
	}

	var removals int
	for _, ev := range f.audit.Events() {
		if ev.Action == store.AuditSweepRemove && ev.CallerID == "ext-a" {
			removals++
		}
	}
	if removals != 1 {
		t.Errorf("expected 1 sweep_remove audit event, got %d", removals)
	}
}

func TestSweep_DisabledTouchesNothing(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a", Installed: true})
	f.inv.SetErr(errors.New("would fail if consulted"))

	for i := 0; i < 3; i++ {
		res, err := f.svc.Sweep(context.Background(), -1)
		if err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if res.Changed() {
			t.Error("disabled sweep must not change anything")
		}
	}
	if a := f.stored(t)["ext-a"]; a.Uninstalled || a.UninstalledTimeMS != nil {
		t.Errorf("expected untouched record, got %+v", a)
	}
}

func TestSweep_InventoryFailureAbortsWithoutSaving(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a", Installed: true})
	f.inv.SetErr(errors.New("down"))

	_, err := f.svc.Sweep(context.Background(), 0)
	if !errors.Is(err, registry.ErrInventoryUnavailable) {
		t.Fatalf("expected ErrInventoryUnavailable, got %v", err)
	}
	if _, ok := f.stored(t)["ext-a"]; !ok {
		t.Error("inventory failure must never be treated as empty inventory")
	}
}

func TestSweep_ReinstatementPersists(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "ext-a", AllowAccess: true})
	ctx := context.Background()

	if _, err := f.svc.Sweep(ctx, 2); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	f.inv.Set(ext("ext-a", "Alpha", true))
	f.clock.Advance(10 * 24 * time.Hour)

	res, err := f.svc.Sweep(ctx, 2)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(res.Removed) != 0 || len(res.Reinstated) != 1 {
		t.Errorf("expected reinstatement only, got %+v", res)
	}
	a := f.stored(t)["ext-a"]
	if a.Uninstalled || !a.Installed || !a.AllowAccess {
		t.Errorf("unexpected record %+v", a)
	}
}

// ── EnsureDefaults ───────────────────────────────────────────────────────────

func TestEnsureDefaults_CreatesLockedSelfRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.EnsureDefaults(ctx); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	self := f.stored(t)["self"]
	if !self.Locked || !self.AllowAccess || self.Name != "Janus" {
		t.Errorf("unexpected self-record %+v", self)
	}
	if !f.svc.IsAllowAccess(ctx, "self") {
		t.Error("self must be allowed")
	}

	// A second run changes nothing.
	if err := f.svc.EnsureDefaults(ctx); err != nil {
		t.Fatalf("EnsureDefaults again: %v", err)
	}
}

func TestEnsureDefaults_MovesLockToSelf(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.AccessRecord{ID: "old-self", Locked: true}, types.AccessRecord{ID: "self", Name: "Mine"})

	if err := f.svc.EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	recs := f.stored(t)
	if recs["old-self"].Locked {
		t.Error("only the configured self-record may be locked")
	}
	if !recs["self"].Locked || recs["self"].Name != "Mine" {
		t.Errorf("unexpected self-record %+v", recs["self"])
	}
}

// ── Listing ──────────────────────────────────────────────────────────────────

func TestListExtensions_ReconciledAndSorted(t *testing.T) {
	f := newFixture(t, ext("ext-b", "Bravo", false))
	f.seed(t, types.AccessRecord{ID: "ext-b", Name: "Bravo"}, types.AccessRecord{ID: "ext-a", Name: "Alpha"})

	list, err := f.svc.ListExtensions(context.Background())
	if err != nil {
		t.Fatalf("ListExtensions: %v", err)
	}
	if len(list) != 2 || list[0].ID != "ext-a" || list[1].ID != "ext-b" {
		t.Fatalf("unexpected list %+v", list)
	}
	if !list[1].Installed || !list[1].Disabled {
		t.Errorf("expected reconciled ext-b, got %+v", list[1])
	}
	// Reads do not persist reconciliation.
	if f.stored(t)["ext-b"].Installed {
		t.Error("list must not save")
	}
}

func TestGetExtension_NotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.GetExtension(context.Background(), "nope"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ── Concurrency ──────────────────────────────────────────────────────────────

func TestConcurrentMutations_NoLostUpdates(t *testing.T) {
	const n = 40
	installed := make([]types.InstalledCaller, 0, n)
	for i := 0; i < n; i++ {
		installed = append(installed, ext(fmt.Sprintf("ext-%02d", i), "X", true))
	}
	f := newFixture(t, installed...)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := f.svc.AllowAccess(ctx, id); err != nil {
				t.Errorf("AllowAccess %s: %v", id, err)
			}
		}(fmt.Sprintf("ext-%02d", i))
	}
	// A sweep racing the toggles must not clobber them.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := f.svc.Sweep(ctx, 7); err != nil {
			t.Errorf("Sweep: %v", err)
		}
	}()
	wg.Wait()

	recs := f.stored(t)
	if len(recs) != n {
		t.Fatalf("expected %d records, got %d", n, len(recs))
	}
	for id, rec := range recs {
		if !rec.AllowAccess {
			t.Errorf("lost update for %s", id)
		}
	}
}
