package model

import "time"

// Schedule is a bookable slot owned by the schedule lookup collaborator.
type Schedule struct {
	ScheduleID     int64     `json:"scheduleId"`
	CenterID       int64     `json:"centerId"`
	SpecialtyID    int64     `json:"specialtyId"`
	PractitionerID int64     `json:"practitionerId"`
	Date           time.Time `json:"date"`
}

// Valid requires positive identifiers and a date after now.
func (s Schedule) Valid(now time.Time) bool {
	return s.ScheduleID > 0 &&
		s.CenterID > 0 &&
		s.SpecialtyID > 0 &&
		s.PractitionerID > 0 &&
		s.Date.After(now)
}
