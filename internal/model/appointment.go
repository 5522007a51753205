package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/richardliu001/appointment-service/internal/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal statuses are never left.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

type CountryCode string

const (
	CountryPE CountryCode = "PE"
	CountryCL CountryCode = "CL"
)

// SupportedCountries is the closed set of routable countries.
var SupportedCountries = []CountryCode{CountryPE, CountryCL}

// ParseCountry matches s exactly against the supported set.
func ParseCountry(s string) (CountryCode, bool) {
	for _, c := range SupportedCountries {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

const InsuredIDLength = 5

var (
	insuredIDPattern    = regexp.MustCompile(`^\d{5}$`)
	rawInsuredIDPattern = regexp.MustCompile(`^\d{1,5}$`)
)

// ErrInvalidTransition is returned when a status change would leave a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// NormalizeInsuredID left-pads a short identifier with zeros to five characters.
// Empty and over-long input is returned unchanged so validation can reject it.
func NormalizeInsuredID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) >= InsuredIDLength {
		return raw
	}
	return strings.Repeat("0", InsuredIDLength-len(raw)) + raw
}

// ValidInsuredID reports whether raw is 1-5 ASCII digits, i.e. acceptable before padding.
func ValidInsuredID(raw string) bool {
	return rawInsuredIDPattern.MatchString(strings.TrimSpace(raw))
}

// CanonicalInsuredID reports whether id is already exactly five digits.
func CanonicalInsuredID(id string) bool {
	return insuredIDPattern.MatchString(id)
}

type Appointment struct {
	ID                  string      `gorm:"primaryKey;size:36" json:"id"`
	InsuredID           string      `gorm:"size:5;not null;index:idx_appointment_insured_created,priority:1" json:"insuredId"`
	ScheduleID          int64       `gorm:"not null" json:"scheduleId"`
	CountryCode         CountryCode `gorm:"size:2;not null" json:"countryCode"`
	Status              Status      `gorm:"size:16;not null;default:'pending'" json:"status"`
	CreatedAt           time.Time   `gorm:"not null;index:idx_appointment_insured_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt           time.Time   `gorm:"not null" json:"updatedAt"`
	ProcessingStartedAt *time.Time  `json:"processingStartedAt,omitempty"`
	CompletedAt         *time.Time  `json:"completedAt,omitempty"`
	ErrorMessage        *string     `gorm:"size:512" json:"errorMessage,omitempty"`
}

func (Appointment) TableName() string { return "appointment" }

// NewAppointment builds a pending appointment; insuredID is normalized first.
func NewAppointment(id, insuredID string, scheduleID int64, country CountryCode, now time.Time) *Appointment {
	now = now.UTC()
	return &Appointment{
		ID:          id,
		InsuredID:   NormalizeInsuredID(insuredID),
		ScheduleID:  scheduleID,
		CountryCode: country,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate collects every violated field into a single validation error.
func (a *Appointment) Validate() error {
	var fields []apperr.FieldError
	if a.ID == "" {
		fields = append(fields, apperr.FieldError{Field: "id", Message: "id is required"})
	}
	if !CanonicalInsuredID(a.InsuredID) {
		fields = append(fields, apperr.FieldError{
			Field:   "insuredId",
			Message: "insuredId must be a valid 5-digit number (can have leading zeros)",
		})
	}
	if a.ScheduleID <= 0 {
		fields = append(fields, apperr.FieldError{Field: "scheduleId", Message: "scheduleId must be a positive number"})
	}
	if _, ok := ParseCountry(string(a.CountryCode)); !ok {
		fields = append(fields, apperr.FieldError{
			Field:   "countryCode",
			Message: fmt.Sprintf("countryCode must be one of %s", supportedList()),
		})
	}
	if a.Status == StatusCompleted && a.CompletedAt == nil {
		fields = append(fields, apperr.FieldError{Field: "completedAt", Message: "completedAt is required for completed appointments"})
	}
	if a.Status != StatusCompleted && a.CompletedAt != nil {
		fields = append(fields, apperr.FieldError{Field: "completedAt", Message: "completedAt is only set on completed appointments"})
	}
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}

// StartProcessing stamps processingStartedAt once, while still pending.
func (a *Appointment) StartProcessing(at time.Time) error {
	if a.Status != StatusPending || a.ProcessingStartedAt != nil {
		return fmt.Errorf("%w: processing already started or %s", ErrInvalidTransition, a.Status)
	}
	at = at.UTC()
	a.ProcessingStartedAt = &at
	a.UpdatedAt = at
	return nil
}

// MarkCompleted moves a pending appointment to completed.
func (a *Appointment) MarkCompleted(at time.Time) error {
	if !CanTransition(a.Status, StatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, StatusCompleted)
	}
	at = at.UTC()
	a.Status = StatusCompleted
	a.CompletedAt = &at
	a.UpdatedAt = at
	return nil
}

// MarkFailed moves a pending appointment to failed with a reason.
func (a *Appointment) MarkFailed(reason string, at time.Time) error {
	if !CanTransition(a.Status, StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, StatusFailed)
	}
	a.Status = StatusFailed
	a.ErrorMessage = &reason
	a.UpdatedAt = at.UTC()
	return nil
}

// Transition applies the change named by to.
func (a *Appointment) Transition(to Status, at time.Time, reason string) error {
	switch to {
	case StatusCompleted:
		return a.MarkCompleted(at)
	case StatusFailed:
		return a.MarkFailed(reason, at)
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
}

func supportedList() string {
	names := make([]string, 0, len(SupportedCountries))
	for _, c := range SupportedCountries {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
