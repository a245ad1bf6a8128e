package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ServiceType classifies a service log entry.
type ServiceType string

const (
	ServicePlanned   ServiceType = "planned"
	ServiceUnplanned ServiceType = "unplanned"
	ServiceEmergency ServiceType = "emergency"
)

// IsValidServiceType checks if a service type is valid.
func IsValidServiceType(t ServiceType) bool {
	switch t {
	case ServicePlanned, ServiceUnplanned, ServiceEmergency:
		return true
	default:
		return false
	}
}

// DateLayout is the wire format for calendar dates (date only, no time component).
const DateLayout = "2006-01-02"

// Today returns the current calendar date.
func Today() string {
	return time.Now().Format(DateLayout)
}

// NextDay returns the calendar date one day after the given date.
// A date that does not parse is returned unchanged.
func NextDay(date string) string {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, 1).Format(DateLayout)
}

// LogFields holds the user-entered fields shared by drafts and committed
// service logs.
type LogFields struct {
	ProviderID         string      `json:"providerId"`
	ServiceOrder       string      `json:"serviceOrder"`
	CarID              string      `json:"carId"`
	Odometer           float64     `json:"odometer"`
	EngineHours        float64     `json:"engineHours"`
	StartDate          string      `json:"startDate"`
	EndDate            string      `json:"endDate"`
	Type               ServiceType `json:"type"`
	ServiceDescription string      `json:"serviceDescription"`
}

// Field selects one mutable field of a draft or edit-session working copy.
type Field string

const (
	FieldProviderID         Field = "providerId"
	FieldServiceOrder       Field = "serviceOrder"
	FieldCarID              Field = "carId"
	FieldOdometer           Field = "odometer"
	FieldEngineHours        Field = "engineHours"
	FieldStartDate          Field = "startDate"
	FieldEndDate            Field = "endDate"
	FieldType               Field = "type"
	FieldServiceDescription Field = "serviceDescription"
)

var (
	ErrUnknownField     = errors.New("unknown field")
	ErrInvalidFieldType = errors.New("invalid value type for field")
)

// SetField applies a single dynamic field mutation. Setting the start date
// re-derives the end date to keep the default one-day service window,
// overwriting any previously chosen end date.
func (f *LogFields) SetField(field Field, value interface{}) error {
	switch field {
	case FieldProviderID:
		s, err := asString(value)
		if err != nil {
			return err
		}
		f.ProviderID = s
	case FieldServiceOrder:
		s, err := asString(value)
		if err != nil {
			return err
		}
		f.ServiceOrder = s
	case FieldCarID:
		s, err := asString(value)
		if err != nil {
			return err
		}
		f.CarID = s
	case FieldOdometer:
		n, err := asNumber(value)
		if err != nil {
			return err
		}
		f.Odometer = n
	case FieldEngineHours:
		n, err := asNumber(value)
		if err != nil {
			return err
		}
		f.EngineHours = n
	case FieldStartDate:
		s, err := asString(value)
		if err != nil {
			return err
		}
		f.StartDate = s
		f.EndDate = NextDay(s)
	case FieldEndDate:
		s, err := asString(value)
		if err != nil {
			return err
		}
		f.EndDate = s
	case FieldType:
		s, err := asString(value)
		if err != nil {
			return err
		}
		if !IsValidServiceType(ServiceType(s)) {
			return fmt.Errorf("invalid service type: %s", s)
		}
		f.Type = ServiceType(s)
	case FieldServiceDescription:
		s, err := asString(value)
		if err != nil {
			return err
		}
		f.ServiceDescription = s
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

func asString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", ErrInvalidFieldType
	}
	return s, nil
}

func asNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, ErrInvalidFieldType
	}
}

// ServiceLog is a committed, validated service log record. It is created only
// by promoting a valid draft and thereafter only replaced wholesale.
type ServiceLog struct {
	ID string `json:"id"`
	LogFields
	CreatedAt time.Time `json:"createdAt"`
}

// Draft is an in-progress service log candidate not yet committed.
type Draft struct {
	ID string `json:"id"`
	LogFields
	LastSaved time.Time `json:"lastSaved"`
	IsDirty   bool      `json:"isDirty"`
}

// NewDraft builds an empty draft with the default one-day service window
// starting today.
func NewDraft(now time.Time) Draft {
	today := now.Format(DateLayout)
	return Draft{
		ID: uuid.NewString(),
		LogFields: LogFields{
			StartDate: today,
			EndDate:   NextDay(today),
			Type:      ServicePlanned,
		},
		LastSaved: now,
	}
}
