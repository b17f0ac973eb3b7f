package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Janus/internal/db"
	"github.com/BrandonDHaskell/Janus/internal/janus/store"
)

type AuditEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAuditEventStore(db *sql.DB, writer *dbpkg.Worker) *AuditEventStore {
	return &AuditEventStore{db: db, writer: writer}
}

func (s *AuditEventStore) RecordEvent(ctx context.Context, ev store.AuditEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	var allow any
	if ev.AllowAccess != nil {
		if *ev.AllowAccess {
			allow = 1
		} else {
			allow = 0
		}
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO audit_events(caller_id, action, allow_access, detail, at_ms)
VALUES (?, ?, ?, ?, ?);
`, ev.CallerID, string(ev.Action), allow, ev.Detail, ev.At.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		return nil
	})
}

// ListEvents returns the newest events first. An empty callerID lists all
// callers; limit <= 0 means no limit.
func (s *AuditEventStore) ListEvents(ctx context.Context, callerID string, limit int) ([]store.AuditEvent, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT caller_id, action, allow_access, detail, at_ms
FROM audit_events
WHERE (? = '' OR caller_id = ?)
ORDER BY at_ms DESC, event_id DESC
LIMIT ?;
`, callerID, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListEvents query: %w", err)
	}
	defer rows.Close()

	var out []store.AuditEvent
	for rows.Next() {
		var (
			ev     store.AuditEvent
			action string
			allow  sql.NullInt64
			atMs   int64
		)
		if err := rows.Scan(&ev.CallerID, &action, &allow, &ev.Detail, &atMs); err != nil {
			return nil, fmt.Errorf("ListEvents scan: %w", err)
		}
		ev.Action = store.AuditAction(action)
		if allow.Valid {
			v := allow.Int64 == 1
			ev.AllowAccess = &v
		}
		ev.At = time.UnixMilli(atMs).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
