package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Collection names
const (
	Events            = "events"
	AttendanceRecords = "attendance_records"
)

// Unique constraints every RecordStore enforces. The Postgres schema uses the
// same names so violations can be matched regardless of backend.
const (
	ConstraintParticipantDay = "attendance_participant_day_key"
	ConstraintPhone          = "attendance_phone_key"
	ConstraintSingleActive   = "events_single_active"
)

var (
	ErrNotFound          = errors.New("store: row not found")
	ErrUnknownCollection = errors.New("store: unknown collection")
	ErrUnknownField      = errors.New("store: unknown field")
)

// ConstraintError reports a write rejected by a unique constraint.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: unique constraint %q violated: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("store: unique constraint %q violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// IsConstraint reports whether err is a violation of the named constraint.
func IsConstraint(err error, name string) bool {
	var ce *ConstraintError
	return errors.As(err, &ce) && ce.Constraint == name
}

// Filter is an equality predicate on one field. Filters passed together are
// AND-ed.
type Filter struct {
	Field string
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Row is a single record keyed by column name.
type Row map[string]any

func (r Row) String(key string) string {
	s, _ := r[key].(string)
	return s
}

func (r Row) Time(key string) time.Time {
	t, _ := r[key].(time.Time)
	return t
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordStore is the persistence contract shared by the lifecycle manager
// and the admission engine.
type RecordStore interface {
	Query(ctx context.Context, collection string, filters ...Filter) ([]Row, error)
	Insert(ctx context.Context, collection string, row Row) (Row, error)
	Update(ctx context.Context, collection, id string, patch Row) error
}
