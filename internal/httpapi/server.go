package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/BrandonDHaskell/Janus/internal/janus/registry"
	"github.com/BrandonDHaskell/Janus/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

type Dependencies struct {
	Logger        *log.Logger
	Addr          string
	PolicyService *service.PolicyService
	AuditStore    store.AuditEventStore

	// SweepGraceDays is used by POST /v1/sweep when the body names none.
	SweepGraceDays int
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	router     *chi.Mux
	policy     *service.PolicyService
	audit      store.AuditEventStore
	graceDays  int
}

func NewServer(d Dependencies) *Server {
	router := chi.NewRouter()

	s := &Server{
		logger:    d.Logger,
		router:    router,
		policy:    d.PolicyService,
		audit:     d.AuditStore,
		graceDays: d.SweepGraceDays,
	}

	router.Use(loggingMiddleware(d.Logger))

	router.Get("/healthz", s.handleHealthz)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Get("/access/{id}", s.handleAccessCheck)

		r.Route("/extensions", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Put("/", s.handleUpsert)
			r.Post("/allow", s.handleSetAccessMany(true))
			r.Post("/disallow", s.handleSetAccessMany(false))
			r.Post("/delete", s.handleDeleteMany)
			r.Get("/{id}", s.handleGet)
			r.Delete("/{id}", s.handleDelete)
			r.Post("/{id}/allow", s.handleSetAccess(true))
			r.Post("/{id}/disallow", s.handleSetAccess(false))
		})

		r.Post("/sweep", s.handleSweep)
		r.Get("/audit", s.handleAudit)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ── Authorization query ──────────────────────────────────────────────────────

// handleAccessCheck always answers 200; a deny is a value, not an error.
func (s *Server) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	allowed := s.policy.IsAllowAccess(r.Context(), id)

	if wantsProtobuf(r) {
		writeProto(w, http.StatusOK, wrapperspb.Bool(allowed))
		return
	}
	writeJSON(w, http.StatusOK, types.AccessCheckResponse{
		ID:          id,
		AllowAccess: allowed,
		ServerTime:  time.Now().UTC().Format(time.RFC3339),
	})
}

// ── Records ──────────────────────────────────────────────────────────────────

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.policy.ListExtensions(r.Context())
	if err != nil {
		s.writeServiceError(w, "list", err)
		return
	}
	if recs == nil {
		recs = []types.AccessRecord{}
	}
	writeJSON(w, http.StatusOK, types.ListResponse{OK: true, Records: recs})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.policy.GetExtension(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, types.RecordResponse{OK: true, Record: rec})
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req types.UpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	rec, err := s.policy.AddOrUpdateExtension(r.Context(), req.OldID, req.ID, req.Name, req.AllowAccess)
	if err != nil {
		s.writeServiceError(w, "upsert", err)
		return
	}
	writeJSON(w, http.StatusOK, types.RecordResponse{OK: true, Record: rec})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	rec, err := s.policy.DeleteExtension(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, types.RecordResponse{OK: true, Record: rec})
}

func (s *Server) handleDeleteMany(w http.ResponseWriter, r *http.Request) {
	var req types.SelectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "empty_selection", "ids is required")
		return
	}

	n, err := s.policy.DeleteSelectedExtensions(r.Context(), req.IDs)
	if err != nil {
		s.writeServiceError(w, "delete_selected", err)
		return
	}
	writeJSON(w, http.StatusOK, types.CountResponse{OK: true, Count: n})
}

// ── Access toggles ───────────────────────────────────────────────────────────

func (s *Server) handleSetAccess(allow bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var (
			rec types.AccessRecord
			err error
		)
		if allow {
			rec, err = s.policy.AllowAccess(r.Context(), id)
		} else {
			rec, err = s.policy.DisallowAccess(r.Context(), id)
		}
		if err != nil {
			s.writeServiceError(w, "set_access", err)
			return
		}
		writeJSON(w, http.StatusOK, types.RecordResponse{OK: true, Record: rec})
	}
}

func (s *Server) handleSetAccessMany(allow bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SelectionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}

		var (
			n   int
			err error
		)
		ctx := r.Context()
		switch {
		case req.All && allow:
			n, err = s.policy.AllowAccessAllExtensions(ctx)
		case req.All:
			n, err = s.policy.DisallowAccessAllExtensions(ctx)
		case len(req.IDs) == 0:
			writeError(w, http.StatusBadRequest, "empty_selection", "ids or all is required")
			return
		case allow:
			n, err = s.policy.AllowAccessSelectedExtensions(ctx, req.IDs)
		default:
			n, err = s.policy.DisallowAccessSelectedExtensions(ctx, req.IDs)
		}
		if err != nil {
			s.writeServiceError(w, "set_access_many", err)
			return
		}
		writeJSON(w, http.StatusOK, types.CountResponse{OK: true, Count: n})
	}
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req types.SweepRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}

	grace := s.graceDays
	if req.GraceDays != nil {
		grace = *req.GraceDays
	}

	res, err := s.policy.Sweep(r.Context(), grace)
	if err != nil {
		s.writeServiceError(w, "sweep", err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse(grace, res))
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "audit_disabled", "audit log not configured")
		return
	}

	q := r.URL.Query()
	limit := 100
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := s.audit.ListEvents(r.Context(), strings.TrimSpace(q.Get("caller_id")), limit)
	if err != nil {
		s.logger.Printf("audit list error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "audit log unavailable")
		return
	}
	writeJSON(w, http.StatusOK, types.AuditResponse{OK: true, Events: auditEntries(events)})
}

// writeServiceError maps the service and registry error taxonomy to HTTP
// statuses. Anything unrecognized is logged and reported as a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCallerID):
		writeError(w, http.StatusBadRequest, "invalid_caller_id", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrUnknownCaller):
		writeError(w, http.StatusNotFound, "unknown_caller", err.Error())
	case errors.Is(err, service.ErrRekeyCollision):
		writeError(w, http.StatusConflict, "rekey_collision", err.Error())
	case errors.Is(err, service.ErrLockedRecord):
		writeError(w, http.StatusForbidden, "locked_record", err.Error())
	case errors.Is(err, registry.ErrInventoryUnavailable):
		s.logger.Printf("%s: %v", op, err)
		writeError(w, http.StatusServiceUnavailable, "inventory_unavailable", "installed-caller inventory unavailable")
	case errors.Is(err, registry.ErrStorageUnavailable):
		s.logger.Printf("%s: %v", op, err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "registry storage unavailable")
	case errors.Is(err, registry.ErrInconsistentRecord):
		s.logger.Printf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "inconsistent_registry", "stored registry failed validation")
	default:
		s.logger.Printf("%s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
