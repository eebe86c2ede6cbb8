package models

import (
	"time"
)

// StatusPresent is the only status an attendance record ever has.
const StatusPresent = "present"

// AttendanceRecord is one accepted check-in. Records are written once and
// never updated.
type AttendanceRecord struct {
	ID             string    `json:"id" db:"id"`
	ParticipantKey string    `json:"participant_key" db:"participant_key"`
	Name           string    `json:"name" db:"name"`
	ContactPhone   string    `json:"contact_phone" db:"contact_phone"`
	ContactEmail   string    `json:"contact_email" db:"contact_email"`
	Course         string    `json:"course" db:"course"`
	YearLevel      string    `json:"year_level" db:"year_level"`
	Date           string    `json:"date" db:"date"`
	CheckInAt      time.Time `json:"check_in_at" db:"check_in_at"`
	Status         string    `json:"status" db:"status"`
}

// CheckInRequest is what a participant submits from the attendance form.
type CheckInRequest struct {
	ParticipantKey string `json:"participant_key" validate:"required"`
	Name           string `json:"name" validate:"required"`
	ContactPhone   string `json:"contact_phone" validate:"required"`
	ContactEmail   string `json:"contact_email" validate:"required"`
	Course         string `json:"course" validate:"required,course"`
	YearLevel      string `json:"year_level" validate:"required,oneof=1 2 3 4"`
}
