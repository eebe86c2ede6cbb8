package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendance-backend/models"
)

// Memory is an in-process RecordStore. It enforces the same unique
// constraints as the Postgres schema, which makes it usable for local runs
// and tests.
type Memory struct {
	mu   sync.Mutex
	rows map[string][]Row
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		rows: make(map[string][]Row),
		now:  time.Now,
	}
}

func (m *Memory) Query(ctx context.Context, collection string, filters ...Filter) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := lookupTable(collection)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		if _, err := t.column(f.Field); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Row
	for _, r := range m.rows[collection] {
		if matches(r, filters) {
			out = append(out, r.clone())
		}
	}
	return out, nil
}

func (m *Memory) Insert(ctx context.Context, collection string, row Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := lookupTable(collection)
	if err != nil {
		return nil, err
	}
	if err := t.checkFields(row); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := row.clone()
	for _, c := range t.columns {
		if !c.generated {
			continue
		}
		if _, ok := r[c.name]; ok {
			continue
		}
		switch c.name {
		case "id":
			r["id"] = uuid.New().String()
		case "created_at":
			r["created_at"] = m.now()
		}
	}

	if err := m.checkUnique(collection, r, ""); err != nil {
		return nil, err
	}

	m.rows[collection] = append(m.rows[collection], r)
	return r.clone(), nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := lookupTable(collection)
	if err != nil {
		return err
	}
	if err := t.checkFields(patch); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.rows[collection]
	for i, r := range rows {
		if r.String("id") != id {
			continue
		}
		updated := r.clone()
		for k, v := range patch {
			updated[k] = v
		}
		if err := m.checkUnique(collection, updated, id); err != nil {
			return err
		}
		rows[i] = updated
		return nil
	}
	return ErrNotFound
}

// checkUnique must be called with m.mu held. skipID excludes the row being
// updated from the comparison.
func (m *Memory) checkUnique(collection string, r Row, skipID string) error {
	for _, other := range m.rows[collection] {
		if skipID != "" && other.String("id") == skipID {
			continue
		}
		switch collection {
		case AttendanceRecords:
			if other.String("participant_key") == r.String("participant_key") && other.String("date") == r.String("date") {
				return &ConstraintError{Constraint: ConstraintParticipantDay}
			}
			if other.String("contact_phone") == r.String("contact_phone") {
				return &ConstraintError{Constraint: ConstraintPhone}
			}
		case Events:
			if r.String("status") == models.StatusActive && other.String("status") == models.StatusActive {
				return &ConstraintError{Constraint: ConstraintSingleActive}
			}
		}
	}
	return nil
}

func matches(r Row, filters []Filter) bool {
	for _, f := range filters {
		if r[f.Field] != f.Value {
			return false
		}
	}
	return true
}

// Ping reports whether ctx is still live; the memory store is always reachable.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}
