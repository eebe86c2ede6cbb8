package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"attendance-backend/models"
	"attendance-backend/store"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventTimedOut     = errors.New("event has timed out")
	ErrActiveEventExists = errors.New("another event is already active")
	ErrInvalidEvent      = errors.New("invalid event")
)

// Manager owns event creation and status transitions. It is the single
// source of truth for whether check-in is currently allowed.
type Manager struct {
	store    store.RecordStore
	validate *validator.Validate
	logger   *zap.Logger
	location *time.Location
}

type Option func(*Manager)

// WithLocation sets the zone for window times submitted without an offset.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) { m.location = loc }
}

func NewManager(s store.RecordStore, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		validate: validator.New(),
		logger:   logger,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateEvent stores a new event in the active state. It fails with
// ErrActiveEventExists while any other event is active.
func (m *Manager) CreateEvent(ctx context.Context, req models.CreateEventRequest, ownerID string) (*models.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	req.Date = strings.TrimSpace(req.Date)
	req = req.InLocation(m.location)

	if err := m.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	admitting, err := m.IsAdmitting(ctx)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	if admitting {
		return nil, ErrActiveEventExists
	}

	row, err := m.store.Insert(ctx, store.Events, store.Row{
		"name":         req.Name,
		"location":     req.Location,
		"date":         req.Date,
		"window_start": req.WindowStart,
		"window_end":   req.WindowEnd,
		"status":       models.StatusActive,
		"owner_id":     ownerID,
	})
	if err != nil {
		if store.IsConstraint(err, store.ConstraintSingleActive) {
			return nil, ErrActiveEventExists
		}
		return nil, fmt.Errorf("create event: %w", err)
	}

	event := eventFromRow(row)
	m.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("name", event.Name),
		zap.String("owner_id", ownerID),
	)
	return &event, nil
}

// Activate opens an event for check-ins. Activating an already active event
// is a no-op; a timed out event cannot be reactivated.
func (m *Manager) Activate(ctx context.Context, id string) (*models.Event, error) {
	event, err := m.GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("activate event: %w", err)
	}

	switch event.Status {
	case models.StatusActive:
		return event, nil
	case models.StatusTimeout:
		return nil, ErrEventTimedOut
	}

	admitting, err := m.IsAdmitting(ctx)
	if err != nil {
		return nil, fmt.Errorf("activate event: %w", err)
	}
	if admitting {
		return nil, ErrActiveEventExists
	}

	if err := m.setStatus(ctx, id, models.StatusActive); err != nil {
		return nil, fmt.Errorf("activate event: %w", err)
	}
	event.Status = models.StatusActive

	m.logger.Info("event activated", zap.String("event_id", id))
	return event, nil
}

// Timeout closes an event for good. Timing out an event twice is a no-op.
func (m *Manager) Timeout(ctx context.Context, id string) (*models.Event, error) {
	event, err := m.GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("timeout event: %w", err)
	}
	if event.Status == models.StatusTimeout {
		return event, nil
	}

	if err := m.setStatus(ctx, id, models.StatusTimeout); err != nil {
		return nil, fmt.Errorf("timeout event: %w", err)
	}
	event.Status = models.StatusTimeout

	m.logger.Info("event timed out", zap.String("event_id", id))
	return event, nil
}

func (m *Manager) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	rows, err := m.store.Query(ctx, store.Events, store.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEventNotFound
	}
	event := eventFromRow(rows[0])
	return &event, nil
}

// ListEvents returns every event in store order.
func (m *Manager) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := m.store.Query(ctx, store.Events)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]models.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, eventFromRow(r))
	}
	return events, nil
}

// IsAdmitting reports whether at least one event is active.
func (m *Manager) IsAdmitting(ctx context.Context) (bool, error) {
	rows, err := m.store.Query(ctx, store.Events, store.Eq("status", models.StatusActive))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (m *Manager) setStatus(ctx context.Context, id, status string) error {
	err := m.store.Update(ctx, store.Events, id, store.Row{"status": status})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrEventNotFound
	case store.IsConstraint(err, store.ConstraintSingleActive):
		return ErrActiveEventExists
	default:
		return err
	}
}

func eventFromRow(r store.Row) models.Event {
	return models.Event{
		ID:          r.String("id"),
		Name:        r.String("name"),
		Location:    r.String("location"),
		Date:        r.String("date"),
		WindowStart: r.Time("window_start"),
		WindowEnd:   r.Time("window_end"),
		Status:      r.String("status"),
		OwnerID:     r.String("owner_id"),
		CreatedAt:   r.Time("created_at"),
	}
}
