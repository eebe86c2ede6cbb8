package admission

import (
	"strings"

	"attendance-backend/models"
)

// Reason explains why a submission was rejected.
type Reason string

const (
	ReasonEventNotActive   Reason = "event_not_active"
	ReasonDuplicateCheckIn Reason = "duplicate_check_in"
	ReasonPhoneAlreadyUsed Reason = "phone_already_used"
	ReasonValidation       Reason = "validation_error"
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// Outcome is the result of one submission: either Accepted with the stored
// record, or rejected with a Reason. A rejected outcome never carries a record.
type Outcome struct {
	Accepted bool
	Record   *models.AttendanceRecord
	Reason   Reason
	// Fields lists the offending fields for ReasonValidation.
	Fields []string
}

func accepted(rec models.AttendanceRecord) Outcome {
	return Outcome{Accepted: true, Record: &rec}
}

func rejected(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// Label is the metrics label for the outcome.
func (o Outcome) Label() string {
	if o.Accepted {
		return "accepted"
	}
	return string(o.Reason)
}

// Message is the text shown to the participant.
func (o Outcome) Message() string {
	if o.Accepted {
		return "Attendance marked successfully!"
	}
	switch o.Reason {
	case ReasonEventNotActive:
		return "Event is not active. Please try again later."
	case ReasonDuplicateCheckIn:
		return "You have already marked your attendance for today!"
	case ReasonPhoneAlreadyUsed:
		return "This phone number is already in use. Please use a different phone number."
	case ReasonValidation:
		if len(o.Fields) == 0 {
			return "Invalid submission."
		}
		return "Invalid submission: " + strings.Join(o.Fields, ", ")
	default:
		return "Attendance service is temporarily unavailable. Please try again."
	}
}
