package httpapi

import (
	"time"

	"github.com/BrandonDHaskell/Janus/internal/janus/registry"
	"github.com/BrandonDHaskell/Janus/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

func sweepResponse(grace int, res registry.SweepResult) types.SweepResponse {
	return types.SweepResponse{
		OK:           true,
		GraceDays:    grace,
		Marked:       len(res.Marked),
		Reinstated:   len(res.Reinstated),
		RemovedCount: len(res.Removed),
	}
}

func auditEntries(events []store.AuditEvent) []types.AuditEntry {
	out := make([]types.AuditEntry, 0, len(events))
	for _, ev := range events {
		out = append(out, types.AuditEntry{
			CallerID:    ev.CallerID,
			Action:      string(ev.Action),
			AllowAccess: ev.AllowAccess,
			Detail:      ev.Detail,
			At:          ev.At.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}
