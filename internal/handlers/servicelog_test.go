package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/servicelog/internal/models"
	"github.com/fleetops/servicelog/internal/state"
	"github.com/fleetops/servicelog/internal/validation"
)

func newLogHandler(t *testing.T) (*LogHandler, *state.Store) {
	t.Helper()
	store := state.New(nil, nil)
	t.Cleanup(store.Close)
	return NewLogHandler(store), store
}

// fillValid sets every required field on the draft so a commit passes
// validation.
func fillValid(t *testing.T, store *state.Store, id string) {
	t.Helper()
	fields := map[models.Field]interface{}{
		models.FieldProviderID:         "PROV-1",
		models.FieldServiceOrder:       "SO-1001",
		models.FieldCarID:              "CAR-42",
		models.FieldOdometer:           120000.0,
		models.FieldEngineHours:        3400.0,
		models.FieldStartDate:          "2024-03-01",
		models.FieldServiceDescription: "oil and filter change",
	}
	for field, value := range fields {
		require.NoError(t, store.UpdateDraftField(id, field, value))
	}
}

func TestStateHandler(t *testing.T) {
	handler, store := newLogHandler(t)
	store.CreateDraft()

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	handler.State(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var st state.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Len(t, st.Drafts, 1)
	assert.NotNil(t, st.CurrentDraft)
}

func TestDraftsHandler_Create(t *testing.T) {
	handler, store := newLogHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/drafts", nil)
	rec := httptest.NewRecorder()
	handler.Drafts(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var draft models.Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	assert.NotEmpty(t, draft.ID)
	assert.Len(t, store.State().Drafts, 1)
}

func TestDraftsHandler_Clear(t *testing.T) {
	handler, store := newLogHandler(t)
	store.CreateDraft()
	store.CreateDraft()

	req := httptest.NewRequest(http.MethodDelete, "/api/drafts", nil)
	rec := httptest.NewRecorder()
	handler.Drafts(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.State().Drafts)
}

func TestDraftsHandler_MethodNotAllowed(t *testing.T) {
	handler, _ := newLogHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/drafts", nil)
	rec := httptest.NewRecorder()
	handler.Drafts(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSelectDraftHandler(t *testing.T) {
	handler, store := newLogHandler(t)
	first := store.CreateDraft()
	store.CreateDraft()

	body := `{"id":"` + first.ID + `"}`
	req := httptest.NewRequest(http.MethodPut, "/api/drafts/current", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.SelectDraft(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, store.State().CurrentDraft)
	assert.Equal(t, first.ID, store.State().CurrentDraft.ID)

	// An empty id clears the pointer
	req = httptest.NewRequest(http.MethodPut, "/api/drafts/current", strings.NewReader(`{"id":""}`))
	rec = httptest.NewRecorder()
	handler.SelectDraft(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, store.State().CurrentDraft)
}

func TestDraftHandler_PatchField(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()

	body := `{"field":"providerId","value":"PROV-9"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/drafts/"+draft.ID, strings.NewReader(body))
	req.SetPathValue("id", draft.ID)
	rec := httptest.NewRecorder()
	handler.Draft(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "PROV-9", store.State().Drafts[0].ProviderID)
	assert.True(t, store.State().Drafts[0].IsDirty)
}

func TestDraftHandler_PatchUnknownField(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()

	body := `{"field":"nonsense","value":"x"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/drafts/"+draft.ID, strings.NewReader(body))
	req.SetPathValue("id", draft.ID)
	rec := httptest.NewRecorder()
	handler.Draft(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDraftHandler_Delete(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()

	req := httptest.NewRequest(http.MethodDelete, "/api/drafts/"+draft.ID, nil)
	req.SetPathValue("id", draft.ID)
	rec := httptest.NewRecorder()
	handler.Draft(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.State().Drafts)
}

func TestCommitDraftHandler_Valid(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()
	fillValid(t, store, draft.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/"+draft.ID+"/commit", nil)
	req.SetPathValue("id", draft.ID)
	rec := httptest.NewRecorder()
	handler.CommitDraft(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var entry models.ServiceLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "CAR-42", entry.CarID)
	assert.Len(t, store.State().ServiceLogs, 1)
	assert.Empty(t, store.State().Drafts)
}

func TestCommitDraftHandler_Violations(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/"+draft.ID+"/commit", nil)
	req.SetPathValue("id", draft.ID)
	rec := httptest.NewRecorder()
	handler.CommitDraft(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp violationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, validation.MsgProviderRequired)
	assert.Empty(t, store.State().ServiceLogs)
}

func TestCommitDraftHandler_StaleID(t *testing.T) {
	handler, _ := newLogHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/nope/commit", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	handler.CommitDraft(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteLogHandler(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()
	fillValid(t, store, draft.ID)
	entry, violations := store.Promote(draft.ID)
	require.Empty(t, violations)

	req := httptest.NewRequest(http.MethodDelete, "/api/logs/"+entry.ID, nil)
	req.SetPathValue("id", entry.ID)
	rec := httptest.NewRecorder()
	handler.DeleteLog(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.State().ServiceLogs)
}

func TestEditFlow(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()
	fillValid(t, store, draft.ID)
	entry, violations := store.Promote(draft.ID)
	require.Empty(t, violations)

	// Begin an edit session
	req := httptest.NewRequest(http.MethodPost, "/api/logs/"+entry.ID+"/edit", nil)
	req.SetPathValue("id", entry.ID)
	rec := httptest.NewRecorder()
	handler.BeginEdit(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, store.State().EditingLog)

	// Mutate the working copy
	body := `{"field":"odometer","value":125000}`
	req = httptest.NewRequest(http.MethodPatch, "/api/edit", strings.NewReader(body))
	rec = httptest.NewRecorder()
	handler.Edit(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Commit it
	req = httptest.NewRequest(http.MethodPost, "/api/edit/commit", nil)
	rec = httptest.NewRecorder()
	handler.CommitEdit(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.ServiceLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, entry.ID, updated.ID)
	assert.Equal(t, 125000.0, updated.Odometer)
	assert.Nil(t, store.State().EditingLog)
}

func TestCommitEditHandler_Violations(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()
	fillValid(t, store, draft.ID)
	entry, violations := store.Promote(draft.ID)
	require.Empty(t, violations)

	store.BeginEdit(entry.ID)
	require.NoError(t, store.UpdateEditField(models.FieldProviderID, ""))

	req := httptest.NewRequest(http.MethodPost, "/api/edit/commit", nil)
	rec := httptest.NewRecorder()
	handler.CommitEdit(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp violationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{validation.MsgProviderRequired}, resp.Errors)
	// The session stays open
	assert.NotNil(t, store.State().EditingLog)
}

func TestCommitEditHandler_NoSession(t *testing.T) {
	handler, _ := newLogHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/edit/commit", nil)
	rec := httptest.NewRecorder()
	handler.CommitEdit(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestEditHandler_Cancel(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()
	fillValid(t, store, draft.ID)
	entry, violations := store.Promote(draft.ID)
	require.Empty(t, violations)
	store.BeginEdit(entry.ID)

	req := httptest.NewRequest(http.MethodDelete, "/api/edit", nil)
	rec := httptest.NewRecorder()
	handler.Edit(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, store.State().EditingLog)
}

func TestSearchHandler(t *testing.T) {
	handler, store := newLogHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/search", strings.NewReader(`{"term":"CAR-42"}`))
	rec := httptest.NewRecorder()
	handler.Search(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "CAR-42", store.State().SearchTerm)
}

func TestFiltersHandler(t *testing.T) {
	handler, store := newLogHandler(t)

	body := `{"startDateFrom":"2024-01-01","type":"planned"}`
	req := httptest.NewRequest(http.MethodPut, "/api/filters", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Filters(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2024-01-01", store.State().Filters.StartDateFrom)
	assert.Equal(t, models.ServicePlanned, store.State().Filters.Type)
}

func TestFiltersHandler_InvalidType(t *testing.T) {
	handler, _ := newLogHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/filters", strings.NewReader(`{"type":"bogus"}`))
	rec := httptest.NewRecorder()
	handler.Filters(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilterPanelHandler(t *testing.T) {
	handler, store := newLogHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/filters/panel", strings.NewReader(`{"visible":true}`))
	rec := httptest.NewRecorder()
	handler.FilterPanel(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, store.State().ShowFilters)
}

func TestLogsHandler_Filtered(t *testing.T) {
	handler, store := newLogHandler(t)
	draft := store.CreateDraft()
	fillValid(t, store, draft.ID)
	_, violations := store.Promote(draft.ID)
	require.Empty(t, violations)

	store.SetSearchTerm("CAR-42")
	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	rec := httptest.NewRecorder()
	handler.Logs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var logs []models.ServiceLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Len(t, logs, 1)

	store.SetSearchTerm("no match")
	rec = httptest.NewRecorder()
	handler.Logs(rec, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var empty []models.ServiceLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty)
}
