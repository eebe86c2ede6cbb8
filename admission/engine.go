package admission

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"attendance-backend/metrics"
	"attendance-backend/models"
	"attendance-backend/store"
)

// Gate answers whether check-in is currently allowed.
type Gate interface {
	IsAdmitting(ctx context.Context) (bool, error)
}

// Notifier receives accepted records. Notify must not block.
type Notifier interface {
	Notify(record models.AttendanceRecord)
}

type Engine struct {
	store    store.RecordStore
	gate     Gate
	notifier Notifier
	metrics  metrics.Sink
	logger   *zap.Logger
	validate *validator.Validate

	// now and location fix the reporting calendar; every date the engine
	// writes or compares is now() in location.
	now      func() time.Time
	location *time.Location
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithMetrics(s metrics.Sink) Option {
	return func(e *Engine) { e.metrics = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.location = loc }
}

func NewEngine(s store.RecordStore, gate Gate, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		gate:     gate,
		metrics:  metrics.NoopSink{},
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitAttendance decides one check-in. The checks run in a fixed order and
// the first failing one decides the outcome; only an accepted submission
// writes a record.
func (e *Engine) SubmitAttendance(ctx context.Context, req models.CheckInRequest) Outcome {
	start := time.Now()
	out := e.submit(ctx, normalize(req))
	e.metrics.AdmissionOutcome(out.Label(), time.Since(start))

	if out.Accepted {
		e.logger.Info("attendance accepted",
			zap.String("record_id", out.Record.ID),
			zap.String("participant_key", out.Record.ParticipantKey),
			zap.String("date", out.Record.Date),
		)
		if e.notifier != nil {
			e.notifier.Notify(*out.Record)
		}
	} else {
		e.logger.Info("attendance rejected",
			zap.String("participant_key", req.ParticipantKey),
			zap.String("reason", string(out.Reason)),
		)
	}
	return out
}

func (e *Engine) submit(ctx context.Context, req models.CheckInRequest) Outcome {
	if fields := e.invalidFields(req); len(fields) > 0 {
		out := rejected(ReasonValidation)
		out.Fields = fields
		return out
	}

	admitting, err := e.gate.IsAdmitting(ctx)
	if err != nil {
		return e.unavailable("check event status", err)
	}
	if !admitting {
		return rejected(ReasonEventNotActive)
	}

	now := e.now().In(e.location)
	today := now.Format(models.DateLayout)

	existing, err := e.store.Query(ctx, store.AttendanceRecords,
		store.Eq("participant_key", req.ParticipantKey),
		store.Eq("date", today),
	)
	if err != nil {
		return e.unavailable("check existing attendance", err)
	}
	if len(existing) > 0 {
		return rejected(ReasonDuplicateCheckIn)
	}

	phones, err := e.store.Query(ctx, store.AttendanceRecords, store.Eq("contact_phone", req.ContactPhone))
	if err != nil {
		return e.unavailable("check phone number", err)
	}
	if len(phones) > 0 {
		return rejected(ReasonPhoneAlreadyUsed)
	}

	row, err := e.store.Insert(ctx, store.AttendanceRecords, store.Row{
		"participant_key": req.ParticipantKey,
		"name":            req.Name,
		"contact_phone":   req.ContactPhone,
		"contact_email":   req.ContactEmail,
		"course":          req.Course,
		"year_level":      req.YearLevel,
		"date":            today,
		"check_in_at":     now,
		"status":          models.StatusPresent,
	})
	if err != nil {
		// A concurrent submission can pass both pre-checks; the store's unique
		// constraints decide it.
		switch {
		case store.IsConstraint(err, store.ConstraintParticipantDay):
			return rejected(ReasonDuplicateCheckIn)
		case store.IsConstraint(err, store.ConstraintPhone):
			return rejected(ReasonPhoneAlreadyUsed)
		}
		return e.unavailable("insert attendance", err)
	}

	return accepted(recordFromRow(row))
}

func (e *Engine) unavailable(op string, err error) Outcome {
	level := zap.ErrorLevel
	if errors.Is(err, context.DeadlineExceeded) {
		level = zap.WarnLevel
	}
	if ce := e.logger.Check(level, "record store unavailable"); ce != nil {
		ce.Write(zap.String("op", op), zap.Error(err))
	}
	return rejected(ReasonStoreUnavailable)
}

// ListRecords returns every attendance record, unfiltered and unpaginated.
func (e *Engine) ListRecords(ctx context.Context) ([]models.AttendanceRecord, error) {
	rows, err := e.store.Query(ctx, store.AttendanceRecords)
	if err != nil {
		return nil, err
	}
	records := make([]models.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, recordFromRow(r))
	}
	return records, nil
}

// FilterRecords keeps records whose name, course, email or phone contains
// text, ignoring case. Empty text keeps everything.
func FilterRecords(records []models.AttendanceRecord, text string) []models.AttendanceRecord {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return records
	}

	out := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Name), text) ||
			strings.Contains(strings.ToLower(r.Course), text) ||
			strings.Contains(strings.ToLower(r.ContactEmail), text) ||
			strings.Contains(strings.ToLower(r.ContactPhone), text) {
			out = append(out, r)
		}
	}
	return out
}

func normalize(req models.CheckInRequest) models.CheckInRequest {
	return models.CheckInRequest{
		ParticipantKey: strings.TrimSpace(req.ParticipantKey),
		Name:           strings.TrimSpace(req.Name),
		ContactPhone:   strings.TrimSpace(req.ContactPhone),
		ContactEmail:   strings.TrimSpace(req.ContactEmail),
		Course:         strings.ToLower(strings.TrimSpace(req.Course)),
		YearLevel:      strings.TrimSpace(req.YearLevel),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("course", func(fl validator.FieldLevel) bool {
		return models.IsCourse(fl.Field().String())
	})
	return v
}

// invalidFields returns the json names of fields that fail validation.
func (e *Engine) invalidFields(req models.CheckInRequest) []string {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"request"}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

func recordFromRow(r store.Row) models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:             r.String("id"),
		ParticipantKey: r.String("participant_key"),
		Name:           r.String("name"),
		ContactPhone:   r.String("contact_phone"),
		ContactEmail:   r.String("contact_email"),
		Course:         r.String("course"),
		YearLevel:      r.String("year_level"),
		Date:           r.String("date"),
		CheckInAt:      r.Time("check_in_at"),
		Status:         r.String("status"),
	}
}
