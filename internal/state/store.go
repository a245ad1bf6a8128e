// Package state owns the draft/record state machine: the draft collection,
// committed service logs, the edit session, the derived search view, and the
// autosave cycle. Every exported operation is a single atomic state
// transition guarded by one mutex, so presentation always observes
// whole-state snapshots.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/fleetops/servicelog/internal/events"
	"github.com/fleetops/servicelog/internal/models"
	"github.com/fleetops/servicelog/internal/storage"
	"github.com/fleetops/servicelog/internal/validation"
)

// SaveStatus reflects the most recent autosave cycle of the current draft.
type SaveStatus string

const (
	StatusIdle   SaveStatus = "idle"
	StatusSaving SaveStatus = "saving"
	StatusSaved  SaveStatus = "saved"
)

// Filters bound the derived service log view. Empty fields are unbounded.
type Filters struct {
	StartDateFrom string             `json:"startDateFrom"`
	StartDateTo   string             `json:"startDateTo"`
	Type          models.ServiceType `json:"type"`
}

// State is the full state shape exposed to presentation.
type State struct {
	ServiceLogs      []models.ServiceLog `json:"serviceLogs"`
	Drafts           []models.Draft      `json:"drafts"`
	CurrentDraft     *models.Draft       `json:"currentDraft"`
	EditingLog       *models.ServiceLog  `json:"editingLog"`
	SearchTerm       string              `json:"searchTerm"`
	Filters          Filters             `json:"filters"`
	ShowFilters      bool                `json:"showFilters"`
	SaveStatus       SaveStatus          `json:"saveStatus"`
	ValidationErrors []string            `json:"validationErrors"`
}

// Saver persists state snapshots. Failures are the saver's problem; the store
// never sees them.
type Saver interface {
	Save(storage.Snapshot)
}

// Store is the single writer for the whole application state.
type Store struct {
	mu sync.Mutex

	logs    []models.ServiceLog
	drafts  []*models.Draft
	current *models.Draft

	editing     *models.ServiceLog
	searchTerm  string
	filters     Filters
	showFilters bool

	valErrors  []string
	saveStatus SaveStatus

	saver     Saver
	publisher events.Publisher

	saveDelay time.Duration
	idleDelay time.Duration
	saveTimer *time.Timer
	idleTimer *time.Timer

	now func() time.Time
}

// New creates a store backed by the given saver and event publisher. Both may
// be nil, in which case persistence and event publishing are disabled.
func New(saver Saver, publisher events.Publisher) *Store {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Store{
		saver:      saver,
		publisher:  publisher,
		saveStatus: StatusIdle,
		saveDelay:  time.Second,
		idleDelay:  2 * time.Second,
		now:        time.Now,
	}
}

// SetAutosaveDelays adjusts the autosave debounce interval and the delay
// before the save status falls back to idle.
func (s *Store) SetAutosaveDelays(save, idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveDelay = save
	s.idleDelay = idle
}

// Close cancels pending autosave timers. The store must not be used after.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimersLocked()
}

// Restore overwrites the live collections with a previously stored snapshot.
// It never triggers a persistence write of its own.
func (s *Store) Restore(snap storage.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = append([]models.ServiceLog(nil), snap.ServiceLogs...)
	s.drafts = nil
	for i := range snap.Drafts {
		d := snap.Drafts[i]
		s.drafts = append(s.drafts, &d)
	}

	// Re-point the current-draft pointer at the collection entry with the
	// same id, so later mutations stay visible through the pointer.
	s.current = nil
	if snap.CurrentDraft != nil {
		s.current = s.findDraftLocked(snap.CurrentDraft.ID)
	}
}

// State returns a deep-copied snapshot of the full state shape.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ServiceLogs: append([]models.ServiceLog(nil), s.logs...),
		SearchTerm:  s.searchTerm,
		Filters:     s.filters,
		ShowFilters: s.showFilters,
		SaveStatus:  s.saveStatus,
	}
	st.Drafts = make([]models.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		st.Drafts = append(st.Drafts, *d)
	}
	if s.current != nil {
		current := *s.current
		st.CurrentDraft = &current
	}
	if s.editing != nil {
		editing := *s.editing
		st.EditingLog = &editing
	}
	if s.valErrors != nil {
		st.ValidationErrors = append([]string(nil), s.valErrors...)
	}
	return st
}

// CreateDraft appends a fresh empty draft and makes it current.
func (s *Store) CreateDraft() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := models.NewDraft(s.now())
	s.drafts = append(s.drafts, &draft)
	s.current = &draft
	s.flushLocked()
	return draft
}

// SelectDraft points the current-draft pointer at the draft with the given
// id, or clears it when the id is empty. Unknown ids are ignored. Switching
// cancels any pending autosave so a stale timer cannot touch the new draft.
func (s *Store) SelectDraft(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimersLocked()
	s.saveStatus = StatusIdle
	s.valErrors = nil

	if id == "" {
		s.current = nil
	} else if d := s.findDraftLocked(id); d != nil {
		s.current = d
	}
	s.flushLocked()
}

// UpdateDraftField applies one field mutation to the draft with the given id
// and schedules the autosave cycle. A stale id is a silent no-op.
func (s *Store) UpdateDraftField(id string, field models.Field, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.findDraftLocked(id)
	if draft == nil {
		return nil
	}
	if err := draft.SetField(field, value); err != nil {
		return err
	}
	draft.IsDirty = true
	s.scheduleAutosaveLocked(id)
	s.flushLocked()
	return nil
}

// DeleteDraft removes the draft with the given id. If it was current, the
// pointer is cleared.
func (s *Store) DeleteDraft(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.draftIndexLocked(id)
	if idx < 0 {
		return
	}
	if s.current != nil && s.current.ID == id {
		s.cancelTimersLocked()
		s.current = nil
		s.saveStatus = StatusIdle
	}
	s.drafts = append(s.drafts[:idx], s.drafts[idx+1:]...)
	s.flushLocked()
}

// ClearDrafts empties the draft collection and clears the current pointer.
func (s *Store) ClearDrafts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimersLocked()
	s.drafts = nil
	s.current = nil
	s.saveStatus = StatusIdle
	s.flushLocked()
}

// MarkSaved clears the dirty flag of the draft with the given id and records
// the save time. A zero time means now. A stale id is a silent no-op.
func (s *Store) MarkSaved(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markSavedLocked(id, at)
	s.flushLocked()
}

func (s *Store) markSavedLocked(id string, at time.Time) {
	draft := s.findDraftLocked(id)
	if draft == nil {
		return
	}
	if at.IsZero() {
		at = s.now()
	}
	draft.IsDirty = false
	draft.LastSaved = at
}

// Promote validates the draft with the given id and, when clean, commits it
// as a service log. The returned violations are non-empty exactly when the
// draft was rejected; in that case nothing changes. This is the only path
// that creates a service log.
func (s *Store) Promote(draftID string) (*models.ServiceLog, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.findDraftLocked(draftID)
	if draft == nil {
		return nil, nil
	}

	if violations := validation.Validate(draft.LogFields); len(violations) > 0 {
		s.valErrors = violations
		return nil, violations
	}

	entry := models.ServiceLog{
		ID:        uuid.NewString(),
		LogFields: draft.LogFields,
		CreatedAt: s.now(),
	}
	s.logs = append(s.logs, entry)

	idx := s.draftIndexLocked(draftID)
	s.drafts = append(s.drafts[:idx], s.drafts[idx+1:]...)
	s.cancelTimersLocked()
	s.current = nil
	s.saveStatus = StatusIdle
	s.valErrors = nil
	s.flushLocked()

	s.publisher.LogCommitted(entry)
	log.WithFields(log.Fields{"id": entry.ID, "car_id": entry.CarID}).Info("Committed service log")
	return &entry, nil
}

// DeleteLog removes the service log with the given id. An edit session open
// on that id is discarded. A stale id is a silent no-op.
func (s *Store) DeleteLog(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.logs {
		if s.logs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.logs = append(s.logs[:idx], s.logs[idx+1:]...)
	if s.editing != nil && s.editing.ID == id {
		s.editing = nil
		s.valErrors = nil
	}
	s.flushLocked()
	s.publisher.LogDeleted(id)
}

// BeginEdit opens a detached working copy of an existing service log and
// clears any stale validation errors. Opening a new session while one is
// active replaces it (last-open-wins). A stale id is a silent no-op.
func (s *Store) BeginEdit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.logs {
		if s.logs[i].ID == id {
			editing := s.logs[i]
			s.editing = &editing
			s.valErrors = nil
			return
		}
	}
}

// UpdateEditField mutates the edit session working copy. The working copy
// stays invisible until the session is committed.
func (s *Store) UpdateEditField(field models.Field, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editing == nil {
		return nil
	}
	return s.editing.SetField(field, value)
}

// CommitEdit validates the working copy and atomically replaces the service
// log sharing its id, preserving its position. On violations the session
// stays open and nothing changes.
func (s *Store) CommitEdit() (*models.ServiceLog, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editing == nil {
		return nil, nil
	}

	if violations := validation.Validate(s.editing.LogFields); len(violations) > 0 {
		s.valErrors = violations
		return nil, violations
	}

	updated := *s.editing
	for i := range s.logs {
		if s.logs[i].ID == updated.ID {
			s.logs[i] = updated
			break
		}
	}
	s.editing = nil
	s.valErrors = nil
	s.saveStatus = StatusIdle
	s.flushLocked()

	s.publisher.LogUpdated(updated)
	log.WithField("id", updated.ID).Info("Updated service log")
	return &updated, nil
}

// CancelEdit discards the working copy unconditionally.
func (s *Store) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = nil
	s.valErrors = nil
}

// SetSearchTerm updates the free-text search term.
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchTerm = term
}

// SetFilters replaces the view filters.
func (s *Store) SetFilters(f Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
}

// SetFilterPanelVisible toggles the filter panel flag surfaced to
// presentation.
func (s *Store) SetFilterPanelVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showFilters = visible
}

func (s *Store) findDraftLocked(id string) *models.Draft {
	for _, d := range s.drafts {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (s *Store) draftIndexLocked(id string) int {
	for i, d := range s.drafts {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// flushLocked pushes a snapshot through the saver after a committed state
// change. Best-effort: the saver swallows its own failures.
func (s *Store) flushLocked() {
	if s.saver == nil {
		return
	}
	snap := storage.Snapshot{
		ServiceLogs: append([]models.ServiceLog(nil), s.logs...),
		Drafts:      make([]models.Draft, 0, len(s.drafts)),
	}
	for _, d := range s.drafts {
		snap.Drafts = append(snap.Drafts, *d)
	}
	if s.current != nil {
		current := *s.current
		snap.CurrentDraft = &current
	}
	s.saver.Save(snap)
}
