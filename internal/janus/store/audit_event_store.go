package store

import (
	"context"
	"time"
)

// AuditAction names a registry mutation.
type AuditAction string

const (
	AuditAllow        AuditAction = "allow"
	AuditDisallow     AuditAction = "disallow"
	AuditUpsert       AuditAction = "upsert"
	AuditRekey        AuditAction = "rekey"
	AuditDelete       AuditAction = "delete"
	AuditSweepMark    AuditAction = "sweep_mark"
	AuditSweepRestore AuditAction = "sweep_reinstate"
	AuditSweepRemove  AuditAction = "sweep_remove"
)

// AuditEvent captures one registry mutation for the audit log.
type AuditEvent struct {
	CallerID    string
	Action      AuditAction
	AllowAccess *bool // nil when the action does not set it
	Detail      string
	At          time.Time
}

// AuditEventStore persists registry mutations as an append-only log.
type AuditEventStore interface {
	RecordEvent(ctx context.Context, ev AuditEvent) error
	ListEvents(ctx context.Context, callerID string, limit int) ([]AuditEvent, error)
}
