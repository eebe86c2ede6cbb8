package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"attendance-backend/metrics"
	"attendance-backend/models"
)

// Sender delivers a notification for one accepted record over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, rec models.AttendanceRecord) error
}

// Guard claims a record before delivery so a record is notified at most once,
// also across instances. Claim returns false when the record was claimed
// before.
type Guard interface {
	Claim(ctx context.Context, recordID string) (bool, error)
}

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher delivers notifications off the admission path. Notify never
// blocks: when the queue is full the notification is dropped. Each sender
// gets exactly one attempt per record; there are no retries.
type Dispatcher struct {
	senders []Sender
	guard   Guard
	timeout time.Duration
	metrics metrics.Sink
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan models.AttendanceRecord
	done   chan struct{}
}

type Config struct {
	Senders []Sender
	// Guard is optional.
	Guard      Guard
	BufferSize int
	// Timeout bounds each individual send.
	Timeout time.Duration
	Metrics metrics.Sink
	Logger  *zap.Logger
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		senders: cfg.Senders,
		guard:   cfg.Guard,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		queue:   make(chan models.AttendanceRecord, cfg.BufferSize),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	go d.run()
}

// Notify enqueues rec for delivery without blocking.
func (d *Dispatcher) Notify(rec models.AttendanceRecord) {
	if len(d.senders) == 0 {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(rec, ErrDispatcherClosed)
		return
	}

	select {
	case d.queue <- rec:
	default:
		d.drop(rec, errors.New("queue full"))
	}
}

func (d *Dispatcher) drop(rec models.AttendanceRecord, reason error) {
	d.metrics.NotificationDropped()
	d.logger.Warn("notification dropped", zap.String("record_id", rec.ID), zap.Error(reason))
}

// Close stops accepting notifications and waits for queued ones to be
// delivered or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for rec := range d.queue {
		d.deliver(rec)
	}
}

func (d *Dispatcher) deliver(rec models.AttendanceRecord) {
	if d.guard != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		claimed, err := d.guard.Claim(ctx, rec.ID)
		cancel()
		if err != nil {
			// Unknown claim state; skipping keeps delivery at most once.
			d.logger.Warn("notification guard failed, skipping", zap.String("record_id", rec.ID), zap.Error(err))
			return
		}
		if !claimed {
			d.logger.Debug("notification already claimed", zap.String("record_id", rec.ID))
			return
		}
	}

	for _, s := range d.senders {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := s.Send(ctx, rec)
		cancel()

		d.metrics.NotificationResult(s.Channel(), err)
		if err != nil {
			d.logger.Warn("notification failed",
				zap.String("channel", s.Channel()),
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		d.logger.Debug("notification sent", zap.String("channel", s.Channel()), zap.String("record_id", rec.ID))
	}
}
