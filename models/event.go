package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event status constants
const (
	StatusInactive = "inactive"
	StatusActive   = "active"
	StatusTimeout  = "timeout"
)

// DateLayout is the calendar date format used for event and attendance dates.
const DateLayout = "2006-01-02"

// Event is one occurrence of the event series. Only the lifecycle manager
// changes its status.
type Event struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Location    string    `json:"location" db:"location"`
	Date        string    `json:"date" db:"date"`
	WindowStart time.Time `json:"window_start" db:"window_start"`
	WindowEnd   time.Time `json:"window_end" db:"window_end"`
	Status      string    `json:"status" db:"status"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type CreateEventRequest struct {
	Name        string    `json:"name" validate:"required"`
	Location    string    `json:"location" validate:"required"`
	Date        string    `json:"date" validate:"required,datetime=2006-01-02"`
	WindowStart time.Time `json:"window_start" validate:"required"`
	WindowEnd   time.Time `json:"window_end" validate:"required,gtfield=WindowStart"`

	// set when the window time arrived without a zone offset
	startZoneless bool
	endZoneless   bool
}

// zonelessLayouts are the values an HTML datetime-local input sends.
var zonelessLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// UnmarshalJSON accepts window times as RFC 3339 or as zoneless
// datetime-local values; the latter are placed in a zone by InLocation.
func (r *CreateEventRequest) UnmarshalJSON(data []byte) error {
	type plain CreateEventRequest
	aux := struct {
		*plain
		WindowStart string `json:"window_start"`
		WindowEnd   string `json:"window_end"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if r.WindowStart, r.startZoneless, err = parseWindowTime("window_start", aux.WindowStart); err != nil {
		return err
	}
	if r.WindowEnd, r.endZoneless, err = parseWindowTime("window_end", aux.WindowEnd); err != nil {
		return err
	}
	return nil
}

func parseWindowTime(field, s string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%s: %q is not RFC 3339 or YYYY-MM-DDTHH:MM", field, s)
}

// InLocation returns r with zoneless window times read as wall clock in loc.
func (r CreateEventRequest) InLocation(loc *time.Location) CreateEventRequest {
	if r.startZoneless {
		r.WindowStart = wallClockIn(r.WindowStart, loc)
		r.startZoneless = false
	}
	if r.endZoneless {
		r.WindowEnd = wallClockIn(r.WindowEnd, loc)
		r.endZoneless = false
	}
	return r
}

func wallClockIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
