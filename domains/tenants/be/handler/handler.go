// Package handler exposes the operational HTTP surface: health probes,
// migration status and per-tenant connection diagnostics. This surface is for
// operators and deploy tooling, not customer traffic, so responses never
// include raw connection strings.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/metadata"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/migration"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/repo"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/resolver"
)

// sharedStatusSource reports where the shared database stands. Satisfied by
// *migration.Orchestrator.
type sharedStatusSource interface {
	SharedStatus(ctx context.Context) migration.MigrationStatus
}

// tenantDirectory looks up tenants by identifier. Satisfied by *metadata.Store.
type tenantDirectory interface {
	GetByIdentifier(ctx context.Context, identifier string) (metadata.TenantDetails, error)
}

// connectionSource is the fast-path resolution surface. Satisfied by
// *resolver.Resolver.
type connectionSource interface {
	Resolve(ctx context.Context, tenant *metadata.TenantDetails) resolver.ConnectionResult
}

// Handler wires the operational endpoints.
type Handler struct {
	status   sharedStatusSource
	tenants  tenantDirectory
	resolver connectionSource
	audit    repo.AuditStore
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(status sharedStatusSource, tenants tenantDirectory, res connectionSource, audit repo.AuditStore, logger *zap.Logger) *Handler {
	if status == nil {
		panic("migration status source is required")
	}
	if tenants == nil {
		panic("tenant directory is required")
	}
	if res == nil {
		panic("connection resolver is required")
	}
	if audit == nil {
		panic("audit store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{status: status, tenants: tenants, resolver: res, audit: audit, logger: logger}
}

// Register mounts every operational route on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Route("/ops", func(r chi.Router) {
		r.Get("/migrations/status", h.migrationStatus)
		r.Get("/migrations/audit", h.migrationAudit)
		r.Route("/tenants/{identifier}", func(r chi.Router) {
			r.Get("/connection", h.tenantConnection)
			r.Get("/audit", h.tenantAudit)
		})
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// readyz reports ready only when the shared database is reachable: a process
// that cannot see its own database should not receive traffic.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if !h.status.SharedStatus(r.Context()).DatabaseExists {
		http.Error(w, "shared database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) migrationStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.status.SharedStatus(r.Context()))
}

func (h *Handler) migrationAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.Recent(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.Error("read migration audit", zap.Error(err))
		http.Error(w, "audit trail unavailable", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, toAPIAudit(entries))
}

// tenantConnection reports routing diagnostics for one tenant: which strategy
// and provider it resolves to and whether the answer came from cache. The
// connection strings themselves stay out of the response.
func (h *Handler) tenantConnection(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.lookupTenant(w, r)
	if !ok {
		return
	}

	res := h.resolver.Resolve(r.Context(), &tenant)
	h.writeJSON(w, http.StatusOK, connectionResponse{
		TenantID:             tenant.ID,
		Identifier:           tenant.Identifier,
		Strategy:             string(res.Strategy),
		Provider:             string(res.Provider),
		FromCache:            res.FromCache,
		CustomerAPIAvailable: res.CustomerAPIAvailable,
		Warning:              res.Warning,
	})
}

func (h *Handler) tenantAudit(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.lookupTenant(w, r)
	if !ok {
		return
	}

	entries, err := h.audit.RecentForTenant(r.Context(), tenant.ID, queryLimit(r))
	if err != nil {
		h.logger.Error("read tenant audit", zap.String("tenant", tenant.Identifier), zap.Error(err))
		http.Error(w, "audit trail unavailable", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, toAPIAudit(entries))
}

func (h *Handler) lookupTenant(w http.ResponseWriter, r *http.Request) (metadata.TenantDetails, bool) {
	identifier := chi.URLParam(r, "identifier")
	tenant, err := h.tenants.GetByIdentifier(r.Context(), identifier)
	if err != nil {
		http.Error(w, "tenant not found", http.StatusNotFound)
		return metadata.TenantDetails{}, false
	}
	return tenant, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 0
	}
	return limit
}

type connectionResponse struct {
	TenantID             uuid.UUID `json:"tenantId"`
	Identifier           string    `json:"identifier"`
	Strategy             string    `json:"strategy"`
	Provider             string    `json:"provider"`
	FromCache            bool      `json:"fromCache"`
	CustomerAPIAvailable bool      `json:"customerApiAvailable"`
	Warning              string    `json:"warning,omitempty"`
}

type auditResponse struct {
	TenantID   *uuid.UUID `json:"tenantId,omitempty"`
	Succeeded  bool       `json:"succeeded"`
	Applied    int        `json:"applied"`
	Detail     string     `json:"detail,omitempty"`
	RecordedAt time.Time  `json:"recordedAt"`
}

func toAPIAudit(entries []repo.AuditEntry) []auditResponse {
	out := make([]auditResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, auditResponse{
			TenantID:   entry.TenantID,
			Succeeded:  entry.Succeeded,
			Applied:    entry.Applied,
			Detail:     entry.Detail,
			RecordedAt: entry.RecordedAt,
		})
	}
	return out
}
