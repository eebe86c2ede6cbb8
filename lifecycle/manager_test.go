package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendance-backend/models"
	"attendance-backend/store"
)

func newEventRequest(name string) models.CreateEventRequest {
	start := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	return models.CreateEventRequest{
		Name:        name,
		Location:    "Main Hall",
		Date:        "2026-10-15",
		WindowStart: start,
		WindowEnd:   start.Add(2 * time.Hour),
	}
}

func newManager(t *testing.T) (*Manager, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	return NewManager(s, zap.NewNop()), s
}

func TestCreateEvent_StartsActive(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	ev, err := m.CreateEvent(ctx, newEventRequest("General Assembly"), "admin-1")
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, models.StatusActive, ev.Status)
	assert.Equal(t, "admin-1", ev.OwnerID)
	assert.Equal(t, "2026-10-15", ev.Date)

	admitting, err := m.IsAdmitting(ctx)
	require.NoError(t, err)
	assert.True(t, admitting)
}

func TestCreateEvent_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CreateEventRequest)
	}{
		{"missing name", func(r *models.CreateEventRequest) { r.Name = "  " }},
		{"missing location", func(r *models.CreateEventRequest) { r.Location = "" }},
		{"bad date", func(r *models.CreateEventRequest) { r.Date = "15/10/2026" }},
		{"missing start", func(r *models.CreateEventRequest) { r.WindowStart = time.Time{} }},
		{"end before start", func(r *models.CreateEventRequest) { r.WindowEnd = r.WindowStart.Add(-time.Minute) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, s := newManager(t)
			req := newEventRequest("Assembly")
			tt.mutate(&req)

			_, err := m.CreateEvent(context.Background(), req, "admin-1")
			assert.ErrorIs(t, err, ErrInvalidEvent)

			rows, err := s.Query(context.Background(), store.Events)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestCreateEvent_RejectedWhileAnotherIsActive(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.CreateEvent(ctx, newEventRequest("E1"), "admin-1")
	require.NoError(t, err)

	_, err = m.CreateEvent(ctx, newEventRequest("E2"), "admin-1")
	assert.ErrorIs(t, err, ErrActiveEventExists)

	events, err := m.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestActivate_IsIdempotent(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	ev, err := m.CreateEvent(ctx, newEventRequest("E1"), "admin-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := m.Activate(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, got.Status)
	}

	events, err := m.ListEvents(ctx)
	require.NoError(t, err)
	active := 0
	for _, e := range events {
		if e.Status == models.StatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestActivate_InactiveEvent(t *testing.T) {
	m, s := newManager(t)
	ctx := context.Background()

	row, err := s.Insert(ctx, store.Events, store.Row{"name": "Dormant", "status": models.StatusInactive})
	require.NoError(t, err)

	ev, err := m.Activate(ctx, row.String("id"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, ev.Status)

	admitting, err := m.IsAdmitting(ctx)
	require.NoError(t, err)
	assert.True(t, admitting)
}

func TestActivate_RejectedWhileAnotherIsActive(t *testing.T) {
	m, s := newManager(t)
	ctx := context.Background()

	_, err := m.CreateEvent(ctx, newEventRequest("E1"), "admin-1")
	require.NoError(t, err)
	row, err := s.Insert(ctx, store.Events, store.Row{"name": "Dormant", "status": models.StatusInactive})
	require.NoError(t, err)

	_, err = m.Activate(ctx, row.String("id"))
	assert.ErrorIs(t, err, ErrActiveEventExists)
}

func TestTimeout_IsTerminal(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	ev, err := m.CreateEvent(ctx, newEventRequest("E1"), "admin-1")
	require.NoError(t, err)

	got, err := m.Timeout(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTimeout, got.Status)

	admitting, err := m.IsAdmitting(ctx)
	require.NoError(t, err)
	assert.False(t, admitting)

	_, err = m.Activate(ctx, ev.ID)
	assert.ErrorIs(t, err, ErrEventTimedOut)

	again, err := m.Timeout(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTimeout, again.Status)
}

func TestTimeout_FreesTheActiveSlot(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	e1, err := m.CreateEvent(ctx, newEventRequest("E1"), "admin-1")
	require.NoError(t, err)
	_, err = m.Timeout(ctx, e1.ID)
	require.NoError(t, err)

	e2, err := m.CreateEvent(ctx, newEventRequest("E2"), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, e2.Status)
}

func TestUnknownEvent(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Activate(ctx, "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = m.Timeout(ctx, "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = m.GetEvent(ctx, "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

type failingStore struct {
	store.RecordStore
	err error
}

func (f failingStore) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Row, error) {
	return nil, f.err
}

func TestStoreErrorsPropagate(t *testing.T) {
	cause := errors.New("connection refused")
	m := NewManager(failingStore{RecordStore: store.NewMemory(), err: cause}, zap.NewNop())
	ctx := context.Background()

	_, err := m.IsAdmitting(ctx)
	assert.ErrorIs(t, err, cause)

	_, err = m.ListEvents(ctx)
	assert.ErrorIs(t, err, cause)

	_, err = m.CreateEvent(ctx, newEventRequest("E1"), "admin-1")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "create event")
}

func TestCreateEvent_ZonelessWindowUsesReportingLocation(t *testing.T) {
	plus8 := time.FixedZone("PHT", 8*60*60)
	m := NewManager(store.NewMemory(), zap.NewNop(), WithLocation(plus8))

	var req models.CreateEventRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Orientation",
		"location": "Main Hall",
		"date": "2026-10-15",
		"window_start": "2026-10-15T08:00",
		"window_end": "2026-10-15T17:00"
	}`), &req))

	ev, err := m.CreateEvent(context.Background(), req, "admin-1")
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC).Equal(ev.WindowStart))
	assert.True(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC).Equal(ev.WindowEnd))
}
