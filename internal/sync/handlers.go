package sync

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/service"
	"github.com/quillsync/quillsync/internal/stream"
)

// tenantHeader carries the caller's tenant id on every API request.
const tenantHeader = "X-Tenant-ID"

// streamContentType is the content type of the framed progress stream. The
// value is historical; receivers key on the framing bytes, not the header.
const streamContentType = "multipart/text"

// Handler exposes the sync API over HTTP.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: slog.Default().With("component", "http"),
	}
}

// Register attaches the API routes to a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sync", h.handleSync)
	mux.HandleFunc("GET /api/search", h.handleSearch)
	mux.HandleFunc("GET /api/backup", h.handleBackup)
}

// handleSync streams one full reconciliation pass as framed progress
// messages. The status is fixed at 200 before streaming starts; every
// failure after that travels in-band as an error frame.
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", streamContentType)
	w.WriteHeader(http.StatusOK)
	enc := stream.NewEncoder(w)

	ctx := r.Context()
	scope, err := h.svc.ScopeFor(ctx, r.Header.Get(tenantHeader))
	if err != nil {
		h.failStream(enc, err)
		return
	}

	provider, err := h.svc.ResolveProvider(ctx, scope)
	if err != nil {
		h.failStream(enc, err)
		return
	}

	// A write error here means the client went away; the sequence stops
	// being pulled and nothing is treated as a fault.
	if err := enc.Drain(provider.SyncAll(ctx, scope.Workspace, scope.Config)); err != nil {
		h.logger.Debug("Sync stream closed early",
			"tenant_id", scope.TenantID,
			"error", err)
	}
}

// failStream reports a pre-stream failure in-band and terminates.
func (h *Handler) failStream(enc *stream.Encoder, err error) {
	h.logger.Error("Sync request failed before streaming", "error", err)
	_ = enc.Encode(model.Error(common.UserMessage(err)))
	_ = enc.Terminate()
}

// handleSearch returns ranked suggestions for an interactive lookup query.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, err := h.svc.ScopeFor(ctx, r.Header.Get(tenantHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}

	provider, err := h.svc.ResolveProvider(ctx, scope)
	if err != nil {
		h.writeError(w, err)
		return
	}

	results, err := provider.Search(ctx, r.URL.Query().Get("query"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if results == nil {
		results = []model.Suggestion{}
	}

	h.writeJSON(w, map[string]any{"results": results})
}

// handleBackup returns a time-limited retrieval link for the tenant's
// stored archive.
func (h *Handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, err := h.svc.ScopeFor(ctx, r.Header.Get(tenantHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}

	provider, err := h.svc.ResolveProvider(ctx, scope)
	if err != nil {
		h.writeError(w, err)
		return
	}

	bp, ok := provider.(service.BackupProvider)
	if !ok {
		h.writeError(w, common.ErrNotImplemented)
		return
	}

	link, err := bp.Link(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, map[string]any{"link": link})
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.logger.Error("Request failed", "error", err)
	http.Error(w, common.UserMessage(err), statusForError(err))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, common.ErrMissingConfig), errors.Is(err, common.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
