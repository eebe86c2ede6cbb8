package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendance-backend/lifecycle"
	"attendance-backend/models"
	"attendance-backend/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu      sync.Mutex
	records []models.AttendanceRecord
}

func (n *recordingNotifier) Notify(rec models.AttendanceRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records)
}

type fixture struct {
	store    *store.Memory
	events   *lifecycle.Manager
	engine   *Engine
	clock    *clock
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemory()
	events := lifecycle.NewManager(s, zap.NewNop())
	c := &clock{now: time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)}
	n := &recordingNotifier{}
	e := NewEngine(s, events, zap.NewNop(),
		WithClock(c.Now),
		WithLocation(time.UTC),
		WithNotifier(n),
	)
	return &fixture{store: s, events: events, engine: e, clock: c, notifier: n}
}

func (f *fixture) createEvent(t *testing.T, name string) *models.Event {
	t.Helper()
	start := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	ev, err := f.events.CreateEvent(context.Background(), models.CreateEventRequest{
		Name:        name,
		Location:    "Gym",
		Date:        "2026-10-15",
		WindowStart: start,
		WindowEnd:   start.Add(3 * time.Hour),
	}, "admin-1")
	require.NoError(t, err)
	return ev
}

func (f *fixture) recordCount(t *testing.T) int {
	t.Helper()
	rows, err := f.store.Query(context.Background(), store.AttendanceRecords)
	require.NoError(t, err)
	return len(rows)
}

func submission(key, phone string) models.CheckInRequest {
	return models.CheckInRequest{
		ParticipantKey: key,
		Name:           "Juan Dela Cruz",
		ContactPhone:   phone,
		ContactEmail:   "juan@example.com",
		Course:         "bscs",
		YearLevel:      "3",
	}
}

func TestSubmitAttendance_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := f.createEvent(t, "E1")

	out := f.engine.SubmitAttendance(ctx, submission("S1", "09170000001"))
	require.True(t, out.Accepted)
	assert.Equal(t, "S1", out.Record.ParticipantKey)
	assert.Equal(t, "2026-10-15", out.Record.Date)
	assert.Equal(t, models.StatusPresent, out.Record.Status)
	assert.NotEmpty(t, out.Record.ID)

	out = f.engine.SubmitAttendance(ctx, submission("S1", "09170000001"))
	assert.Equal(t, ReasonDuplicateCheckIn, out.Reason)

	out = f.engine.SubmitAttendance(ctx, submission("S2", "09170000001"))
	assert.Equal(t, ReasonPhoneAlreadyUsed, out.Reason)

	_, err := f.events.Timeout(ctx, e1.ID)
	require.NoError(t, err)

	out = f.engine.SubmitAttendance(ctx, submission("S3", "09170000002"))
	assert.Equal(t, ReasonEventNotActive, out.Reason)

	assert.Equal(t, 1, f.recordCount(t))
	assert.Equal(t, 1, f.notifier.count())
}

func TestSubmitAttendance_RejectedWithoutActiveEvent(t *testing.T) {
	f := newFixture(t)

	inputs := []models.CheckInRequest{
		submission("S1", "0917-1"),
		submission("S2", "0917-2"),
	}
	for _, in := range inputs {
		out := f.engine.SubmitAttendance(context.Background(), in)
		assert.False(t, out.Accepted)
		assert.Equal(t, ReasonEventNotActive, out.Reason)
		assert.Nil(t, out.Record)
	}
	assert.Equal(t, 0, f.recordCount(t))
	assert.Equal(t, 0, f.notifier.count())
}

type countingGate struct {
	Gate
	calls int
}

func (g *countingGate) IsAdmitting(ctx context.Context) (bool, error) {
	g.calls++
	return g.Gate.IsAdmitting(ctx)
}

// Field validation is decided before the event gate, so a malformed
// submission reports its fields even while no event is active.
func TestSubmitAttendance_ValidationPrecedesGate(t *testing.T) {
	f := newFixture(t)
	gate := &countingGate{Gate: f.events}
	e := NewEngine(f.store, gate, zap.NewNop(), WithLocation(time.UTC), WithNotifier(f.notifier))

	bad := submission("S1", "0917-1")
	bad.Course = "nope"

	out := e.SubmitAttendance(context.Background(), bad)
	assert.Equal(t, ReasonValidation, out.Reason)
	assert.Equal(t, []string{"course"}, out.Fields)
	assert.Equal(t, 0, gate.calls)

	out = e.SubmitAttendance(context.Background(), submission("S1", "0917-1"))
	assert.Equal(t, ReasonEventNotActive, out.Reason)
	assert.Equal(t, 1, gate.calls)

	assert.Equal(t, 0, f.recordCount(t))
	assert.Equal(t, 0, f.notifier.count())
}

func TestSubmitAttendance_SameKeyNextDayIsAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createEvent(t, "E1")

	out := f.engine.SubmitAttendance(ctx, submission("S1", "0917-1"))
	require.True(t, out.Accepted)

	f.clock.Set(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))
	out = f.engine.SubmitAttendance(ctx, submission("S1", "0917-2"))
	require.True(t, out.Accepted)
	assert.Equal(t, "2026-10-16", out.Record.Date)
}

func TestSubmitAttendance_PhoneReservedAcrossDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createEvent(t, "E1")

	require.True(t, f.engine.SubmitAttendance(ctx, submission("S1", "0917-1")).Accepted)

	f.clock.Set(time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC))
	out := f.engine.SubmitAttendance(ctx, submission("S9", "0917-1"))
	assert.Equal(t, ReasonPhoneAlreadyUsed, out.Reason)
}

func TestSubmitAttendance_DuplicateCheckedBeforePhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createEvent(t, "E1")

	require.True(t, f.engine.SubmitAttendance(ctx, submission("S1", "0917-1")).Accepted)

	// Same key and same phone: both rules apply, the per-day rule wins.
	out := f.engine.SubmitAttendance(ctx, submission("S1", "0917-1"))
	assert.Equal(t, ReasonDuplicateCheckIn, out.Reason)
}

func TestSubmitAttendance_DateUsesReportingLocation(t *testing.T) {
	f := newFixture(t)
	manila := time.FixedZone("PHT", 8*60*60)
	f.engine = NewEngine(f.store, f.events, zap.NewNop(), WithClock(f.clock.Now), WithLocation(manila))
	f.clock.Set(time.Date(2026, 10, 15, 23, 30, 0, 0, time.UTC))
	f.createEvent(t, "E1")

	out := f.engine.SubmitAttendance(context.Background(), submission("S1", "0917-1"))
	require.True(t, out.Accepted)
	assert.Equal(t, "2026-10-16", out.Record.Date)
}

func TestSubmitAttendance_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CheckInRequest)
		field  string
	}{
		{"missing participant key", func(r *models.CheckInRequest) { r.ParticipantKey = "" }, "participant_key"},
		{"blank name", func(r *models.CheckInRequest) { r.Name = "   " }, "name"},
		{"missing phone", func(r *models.CheckInRequest) { r.ContactPhone = "" }, "contact_phone"},
		{"missing email", func(r *models.CheckInRequest) { r.ContactEmail = "" }, "contact_email"},
		{"unknown course", func(r *models.CheckInRequest) { r.Course = "bsastro" }, "course"},
		{"year out of range", func(r *models.CheckInRequest) { r.YearLevel = "5" }, "year_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.createEvent(t, "E1")
			req := submission("S1", "0917-1")
			tt.mutate(&req)

			out := f.engine.SubmitAttendance(context.Background(), req)
			assert.Equal(t, ReasonValidation, out.Reason)
			assert.Contains(t, out.Fields, tt.field)
			assert.Contains(t, out.Message(), tt.field)
			assert.Equal(t, 0, f.recordCount(t))
		})
	}
}

func TestSubmitAttendance_CourseIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.createEvent(t, "E1")
	req := submission("S1", "0917-1")
	req.Course = " BSIT "

	out := f.engine.SubmitAttendance(context.Background(), req)
	require.True(t, out.Accepted)
	assert.Equal(t, "bsit", out.Record.Course)
}

// racingStore hides existing rows from the pre-checks, as if another
// submission committed between the check and the insert.
type racingStore struct {
	*store.Memory
}

func (r racingStore) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Row, error) {
	if collection == store.AttendanceRecords {
		return nil, nil
	}
	return r.Memory.Query(ctx, collection, filters...)
}

func TestSubmitAttendance_ConstraintViolationMapsToReason(t *testing.T) {
	mem := store.NewMemory()
	events := lifecycle.NewManager(mem, zap.NewNop())
	c := &clock{now: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	e := NewEngine(racingStore{mem}, events, zap.NewNop(), WithClock(c.Now), WithLocation(time.UTC))
	ctx := context.Background()

	start := c.now
	_, err := events.CreateEvent(ctx, models.CreateEventRequest{
		Name: "E1", Location: "Gym", Date: "2026-10-15", WindowStart: start, WindowEnd: start.Add(time.Hour),
	}, "admin-1")
	require.NoError(t, err)

	require.True(t, e.SubmitAttendance(ctx, submission("S1", "0917-1")).Accepted)

	out := e.SubmitAttendance(ctx, submission("S1", "0917-2"))
	assert.Equal(t, ReasonDuplicateCheckIn, out.Reason)

	out = e.SubmitAttendance(ctx, submission("S2", "0917-1"))
	assert.Equal(t, ReasonPhoneAlreadyUsed, out.Reason)

	rows, err := mem.Query(ctx, store.AttendanceRecords)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSubmitAttendance_ConcurrentSameParticipant(t *testing.T) {
	f := newFixture(t)
	f.createEvent(t, "E1")

	const n = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := f.engine.SubmitAttendance(context.Background(), submission("S1", "0917-"+string(rune('a'+i))))
			if out.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, f.recordCount(t))
}

type flakyStore struct {
	*store.Memory
	failQuery  bool
	failInsert bool
}

var errFlaky = errors.New("dial tcp: connection refused")

func (s *flakyStore) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Row, error) {
	if s.failQuery && collection == store.AttendanceRecords {
		return nil, errFlaky
	}
	return s.Memory.Query(ctx, collection, filters...)
}

func (s *flakyStore) Insert(ctx context.Context, collection string, row store.Row) (store.Row, error) {
	if s.failInsert && collection == store.AttendanceRecords {
		return nil, errFlaky
	}
	return s.Memory.Insert(ctx, collection, row)
}

func TestSubmitAttendance_StoreFailuresFailClosed(t *testing.T) {
	tests := []struct {
		name       string
		failQuery  bool
		failInsert bool
	}{
		{"pre-check fails", true, false},
		{"insert fails", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			events := lifecycle.NewManager(mem, zap.NewNop())
			fs := &flakyStore{Memory: mem}
			n := &recordingNotifier{}
			e := NewEngine(fs, events, zap.NewNop(), WithNotifier(n))
			ctx := context.Background()

			start := time.Now()
			_, err := events.CreateEvent(ctx, models.CreateEventRequest{
				Name: "E1", Location: "Gym", Date: start.Format(models.DateLayout), WindowStart: start, WindowEnd: start.Add(time.Hour),
			}, "admin-1")
			require.NoError(t, err)

			fs.failQuery, fs.failInsert = tt.failQuery, tt.failInsert
			out := e.SubmitAttendance(ctx, submission("S1", "0917-1"))
			assert.Equal(t, ReasonStoreUnavailable, out.Reason)
			assert.Nil(t, out.Record)
			assert.Equal(t, 0, n.count())

			rows, err := mem.Query(ctx, store.AttendanceRecords)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

type brokenGate struct{}

func (brokenGate) IsAdmitting(context.Context) (bool, error) {
	return false, context.DeadlineExceeded
}

func TestSubmitAttendance_GateFailureIsStoreUnavailable(t *testing.T) {
	e := NewEngine(store.NewMemory(), brokenGate{}, zap.NewNop())

	out := e.SubmitAttendance(context.Background(), submission("S1", "0917-1"))
	assert.Equal(t, ReasonStoreUnavailable, out.Reason)
}

func TestListRecordsAndFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createEvent(t, "E1")

	a := submission("S1", "0917-1")
	a.Name = "Maria Santos"
	b := submission("S2", "0918-2")
	b.Name = "Pedro Reyes"
	b.Course = "bsn"
	require.True(t, f.engine.SubmitAttendance(ctx, a).Accepted)
	require.True(t, f.engine.SubmitAttendance(ctx, b).Accepted)

	records, err := f.engine.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Len(t, FilterRecords(records, ""), 2)
	assert.Len(t, FilterRecords(records, "maria"), 1)
	assert.Len(t, FilterRecords(records, "BSN"), 1)
	assert.Len(t, FilterRecords(records, "0918"), 1)
	assert.Len(t, FilterRecords(records, "example.com"), 2)
	assert.Empty(t, FilterRecords(records, "nobody"))
}

func TestOutcomeMessages(t *testing.T) {
	assert.Equal(t, "Attendance marked successfully!", accepted(models.AttendanceRecord{}).Message())
	assert.Equal(t, "Event is not active. Please try again later.", rejected(ReasonEventNotActive).Message())
	assert.Equal(t, "You have already marked your attendance for today!", rejected(ReasonDuplicateCheckIn).Message())
	assert.Contains(t, rejected(ReasonPhoneAlreadyUsed).Message(), "already in use")
	assert.Contains(t, rejected(ReasonStoreUnavailable).Message(), "temporarily unavailable")
	assert.Equal(t, "accepted", accepted(models.AttendanceRecord{}).Label())
	assert.Equal(t, "phone_already_used", rejected(ReasonPhoneAlreadyUsed).Label())
}
