package state

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// scheduleAutosaveLocked debounces the autosave of a mutated draft: a new
// mutation before the timer fires cancels and reschedules it, so only the
// most recent mutation's timer survives. The draft id is captured at schedule
// time and re-checked when the timer fires, so a save never lands on a
// different, now-current draft.
func (s *Store) scheduleAutosaveLocked(id string) {
	if s.current != nil && s.current.ID == id {
		s.saveStatus = StatusSaving
	}
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	s.saveTimer = time.AfterFunc(s.saveDelay, func() { s.autosaveFired(id) })
}

func (s *Store) autosaveFired(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The draft may have been deleted or promoted since the timer was set.
	if s.findDraftLocked(id) == nil {
		return
	}
	s.markSavedLocked(id, s.now())
	if s.current != nil && s.current.ID == id {
		s.saveStatus = StatusSaved
		s.idleTimer = time.AfterFunc(s.idleDelay, s.statusToIdle)
	}
	s.flushLocked()
	log.WithField("draft_id", id).Debug("Autosaved draft")
}

// statusToIdle reverts the save status after a quiet period with no further
// mutations.
func (s *Store) statusToIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveStatus == StatusSaved {
		s.saveStatus = StatusIdle
	}
	s.idleTimer = nil
}

func (s *Store) cancelTimersLocked() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}
