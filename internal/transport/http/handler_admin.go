package httptransport

import (
	"encoding/json"
	"net/http"

	"witnessgate/internal/batch"
	"witnessgate/internal/store"
)

// AdminHandlers serves the read-only store projections and the manual
// batch trigger spec.md §6 names as the management surface.
type AdminHandlers struct {
	store     *store.Store
	submitter *batch.Submitter
}

func NewAdminHandlers(st *store.Store, submitter *batch.Submitter) *AdminHandlers {
	return &AdminHandlers{store: st, submitter: submitter}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) Devices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items, err := h.store.ListDevices(r.Context(), limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

func (h *AdminHandlers) Submissions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		deviceID := r.URL.Query().Get("device_id")
		items, err := h.store.ListSubmissions(r.Context(), deviceID, limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

func (h *AdminHandlers) Pets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items, err := h.store.ListPets(r.Context(), limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

// RunBatch invokes the batch submitter synchronously and returns its
// summary (spec.md §4.6: "one manual batch-submit POST that invokes
// §4.6 synchronously and returns its summary").
func (h *AdminHandlers) RunBatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := h.submitter.RunOnce(r.Context())
		_ = json.NewEncoder(w).Encode(summary)
	}
}
