package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/fleetops/servicelog/internal/models"
	"github.com/fleetops/servicelog/internal/state"
)

// LogHandler exposes the service log state machine over HTTP. It is a thin
// presentation adapter: it reads the state shape and dispatches store
// operations, never touching state directly.
type LogHandler struct {
	store *state.Store
}

// NewLogHandler creates a new service log handler
func NewLogHandler(store *state.Store) *LogHandler {
	return &LogHandler{store: store}
}

// fieldUpdate is the body of a dynamic field mutation.
type fieldUpdate struct {
	Field models.Field `json:"field"`
	Value interface{}  `json:"value"`
}

// violationsResponse carries validation messages for a rejected commit.
type violationsResponse struct {
	Errors []string `json:"errors"`
}

// State handles GET /api/state and returns the full state shape.
func (h *LogHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.store.State())
}

// Logs handles GET /api/logs and returns the filtered projection.
func (h *LogHandler) Logs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.store.FilteredLogs())
}

// Drafts handles POST /api/drafts (create a draft and make it current) and
// DELETE /api/drafts (clear the whole draft collection).
func (h *LogHandler) Drafts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		draft := h.store.CreateDraft()
		writeJSON(w, http.StatusCreated, draft)
	case http.MethodDelete:
		h.store.ClearDrafts()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// SelectDraft handles PUT /api/drafts/current. An empty id clears the
// current-draft pointer.
func (h *LogHandler) SelectDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	h.store.SelectDraft(req.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Draft handles PATCH /api/drafts/{id} (dynamic field mutation) and
// DELETE /api/drafts/{id}.
func (h *LogHandler) Draft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodPatch:
		var req fieldUpdate
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if err := h.store.UpdateDraftField(id, req.Field, req.Value); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		h.store.DeleteDraft(id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// CommitDraft handles POST /api/drafts/{id}/commit. A valid draft is promoted
// to a service log; violations come back as 422 with the ordered messages.
func (h *LogHandler) CommitDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entry, violations := h.store.Promote(r.PathValue("id"))
	if len(violations) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, violationsResponse{Errors: violations})
		return
	}
	if entry == nil {
		// Stale draft id: the operation is a no-op.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// DeleteLog handles DELETE /api/logs/{id}.
func (h *LogHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.store.DeleteLog(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// BeginEdit handles POST /api/logs/{id}/edit and opens an edit session on the
// given service log.
func (h *LogHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.store.BeginEdit(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// Edit handles PATCH /api/edit (mutate the working copy) and DELETE /api/edit
// (cancel the session).
func (h *LogHandler) Edit(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPatch:
		var req fieldUpdate
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if err := h.store.UpdateEditField(req.Field, req.Value); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		h.store.CancelEdit()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// CommitEdit handles POST /api/edit/commit. On violations the session stays
// open and the messages come back as 422.
func (h *LogHandler) CommitEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entry, violations := h.store.CommitEdit()
	if len(violations) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, violationsResponse{Errors: violations})
		return
	}
	if entry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Search handles PUT /api/search and updates the free-text search term.
func (h *LogHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Term string `json:"term"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	h.store.SetSearchTerm(req.Term)
	w.WriteHeader(http.StatusNoContent)
}

// Filters handles PUT /api/filters and replaces the view filters.
func (h *LogHandler) Filters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var filters state.Filters
	if err := decodeBody(r, &filters); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if filters.Type != "" && !models.IsValidServiceType(filters.Type) {
		http.Error(w, "Invalid service type", http.StatusBadRequest)
		return
	}

	h.store.SetFilters(filters)
	w.WriteHeader(http.StatusNoContent)
}

// FilterPanel handles PUT /api/filters/panel and toggles the filter panel
// visibility flag.
func (h *LogHandler) FilterPanel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Visible bool `json:"visible"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	h.store.SetFilterPanelVisible(req.Visible)
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health.
func (h *LogHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(r *http.Request, out interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
