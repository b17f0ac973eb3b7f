package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Janus/internal/janus/store"
)

// AuditEventStore is an in-memory append-only log of registry mutations.
// It is intended for use in tests and dev environments.
type AuditEventStore struct {
	mu     sync.Mutex
	events []store.AuditEvent
}

func NewAuditEventStore() *AuditEventStore {
	return &AuditEventStore{}
}

func (s *AuditEventStore) RecordEvent(_ context.Context, ev store.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// ListEvents returns the newest events first, optionally filtered to one
// caller. limit <= 0 means no limit.
func (s *AuditEventStore) ListEvents(_ context.Context, callerID string, limit int) ([]store.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AuditEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if callerID != "" && ev.CallerID != callerID {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Events returns a copy of all recorded events in insertion order.  Test-only helper.
func (s *AuditEventStore) Events() []store.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}
