package model

import "time"

// CountryStatusConfirmed is the local status a country store gives an accepted appointment.
const CountryStatusConfirmed = "confirmed"

// CountryRecord is the system-of-record row in a country-specific store.
type CountryRecord struct {
	ID              string      `gorm:"primaryKey;size:36" json:"id"`
	InsuredID       string      `gorm:"size:5;not null;index" json:"insuredId"`
	ScheduleID      int64       `gorm:"not null" json:"scheduleId"`
	CenterID        int64       `gorm:"not null" json:"centerId"`
	SpecialtyID     int64       `gorm:"not null" json:"specialtyId"`
	PractitionerID  int64       `gorm:"not null" json:"practitionerId"`
	AppointmentDate time.Time   `gorm:"not null" json:"appointmentDate"`
	CountryCode     CountryCode `gorm:"size:2;not null" json:"countryCode"`
	Status          string      `gorm:"size:16;not null" json:"status"`
	CreatedAt       time.Time   `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time   `gorm:"not null" json:"updatedAt"`
}

func (CountryRecord) TableName() string { return "country_appointment" }
