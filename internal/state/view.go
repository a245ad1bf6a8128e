package state

import (
	"strconv"
	"strings"
	"time"

	"github.com/fleetops/servicelog/internal/models"
)

// FilteredLogs derives the read-only projection of the service log
// collection: an entry passes when the search term matches the string
// rendering of at least one field and every active filter bound holds.
// The projection is recomputed on demand and never mutates the underlying
// collection.
func (s *Store) FilteredLogs() []models.ServiceLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	term := strings.ToLower(strings.TrimSpace(s.searchTerm))
	out := make([]models.ServiceLog, 0, len(s.logs))
	for _, entry := range s.logs {
		if term != "" && !matchesTerm(entry, term) {
			continue
		}
		// ISO dates order lexicographically, so string comparison is a
		// calendar comparison.
		if s.filters.StartDateFrom != "" && entry.StartDate < s.filters.StartDateFrom {
			continue
		}
		if s.filters.StartDateTo != "" && entry.StartDate > s.filters.StartDateTo {
			continue
		}
		if s.filters.Type != "" && entry.Type != s.filters.Type {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func matchesTerm(entry models.ServiceLog, term string) bool {
	for _, field := range fieldStrings(entry) {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// fieldStrings renders every field of a service log for search matching.
func fieldStrings(entry models.ServiceLog) []string {
	return []string{
		entry.ID,
		entry.ProviderID,
		entry.ServiceOrder,
		entry.CarID,
		strconv.FormatFloat(entry.Odometer, 'f', -1, 64),
		strconv.FormatFloat(entry.EngineHours, 'f', -1, 64),
		entry.StartDate,
		entry.EndDate,
		string(entry.Type),
		entry.ServiceDescription,
		entry.CreatedAt.Format(time.RFC3339),
	}
}
