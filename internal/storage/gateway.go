package storage

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/fleetops/servicelog/internal/models"
)

// Snapshot is the serialized state shape: committed service logs, in-progress
// drafts, and the current draft. Drafts are written with the dirty flag
// cleared, since a stored draft is by definition saved.
type Snapshot struct {
	ServiceLogs  []models.ServiceLog `json:"serviceLogs"`
	Drafts       []models.Draft      `json:"drafts"`
	CurrentDraft *models.Draft       `json:"currentDraft"`
}

// Gateway reads and writes the state snapshot under the fixed storage key.
type Gateway struct {
	store Store
}

// NewGateway creates a gateway over the given key-value store.
func NewGateway(store Store) *Gateway {
	return &Gateway{store: store}
}

// Save writes the snapshot. Failures are logged and swallowed so the
// previously stored state stays untouched and the caller never sees an error.
func (g *Gateway) Save(snap Snapshot) {
	for i := range snap.Drafts {
		snap.Drafts[i].IsDirty = false
	}
	if snap.CurrentDraft != nil {
		current := *snap.CurrentDraft
		current.IsDirty = false
		snap.CurrentDraft = &current
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.WithError(err).Warn("Failed to serialize state snapshot")
		return
	}
	if err := g.store.Put(StateKey, data); err != nil {
		log.WithError(err).Warn("Failed to persist state snapshot")
	}
}

// Restore loads the stored snapshot. A missing or unparsable blob is a normal
// "no prior state" condition, reported through the second result.
func (g *Gateway) Restore() (*Snapshot, bool) {
	data, ok, err := g.store.Get(StateKey)
	if err != nil {
		log.WithError(err).Warn("Failed to read stored state")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.WithError(err).Warn("Stored state is corrupt, starting fresh")
		return nil, false
	}
	return &snap, true
}
