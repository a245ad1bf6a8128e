// Package validation checks service log candidates before they are committed.
package validation

import (
	"strings"
	"time"

	"github.com/fleetops/servicelog/internal/models"
)

// Violation messages, in the order the checks run.
const (
	MsgProviderRequired    = "Provider ID is required"
	MsgOrderRequired       = "Service Order is required"
	MsgCarRequired         = "Car ID is required"
	MsgOdometerRequired    = "Valid odometer reading is required"
	MsgEngineHoursRequired = "Valid engine hours is required"
	MsgStartDateRequired   = "Start date is required"
	MsgEndDateRequired     = "End date is required"
	MsgDescriptionRequired = "Service description is required"
	MsgDateOrder           = "End date must be after start date"
)

// Validate runs every check against the candidate fields and returns the
// violations in a fixed order. It has no side effects; an empty result means
// the candidate may be committed.
func Validate(f models.LogFields) []string {
	var violations []string

	if strings.TrimSpace(f.ProviderID) == "" {
		violations = append(violations, MsgProviderRequired)
	}
	if strings.TrimSpace(f.ServiceOrder) == "" {
		violations = append(violations, MsgOrderRequired)
	}
	if strings.TrimSpace(f.CarID) == "" {
		violations = append(violations, MsgCarRequired)
	}
	if f.Odometer < 0 {
		violations = append(violations, MsgOdometerRequired)
	}
	if f.EngineHours < 0 {
		violations = append(violations, MsgEngineHoursRequired)
	}
	if f.StartDate == "" {
		violations = append(violations, MsgStartDateRequired)
	}
	if f.EndDate == "" {
		violations = append(violations, MsgEndDateRequired)
	}
	if strings.TrimSpace(f.ServiceDescription) == "" {
		violations = append(violations, MsgDescriptionRequired)
	}
	if f.StartDate != "" && f.EndDate != "" {
		start, startErr := time.Parse(models.DateLayout, f.StartDate)
		end, endErr := time.Parse(models.DateLayout, f.EndDate)
		if startErr == nil && endErr == nil && end.Before(start) {
			violations = append(violations, MsgDateOrder)
		}
	}

	return violations
}
