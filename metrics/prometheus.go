package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	admissionOutcomesTotal *prometheus.CounterVec
	admissionDuration      prometheus.Histogram

	notificationsTotal        *prometheus.CounterVec
	notificationsDroppedTotal prometheus.Counter

	logger *zap.Logger
}

func NewPrometheusSink(reg prometheus.Registerer, logger *zap.Logger) *PrometheusSink {
	s := &PrometheusSink{logger: logger}

	s.admissionOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_admission_outcomes_total",
		Help: "Total number of check-in submissions by outcome.",
	}, []string{"outcome"})
	s.admissionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_admission_duration_seconds",
		Help:    "Time taken to decide a check-in submission.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
	s.notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_notifications_total",
		Help: "Total number of notification attempts by channel and result.",
	}, []string{"channel", "result"})
	s.notificationsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_notifications_dropped_total",
		Help: "Notifications dropped because the dispatch queue was full or closed.",
	})

	s.admissionOutcomesTotal = registerOrExisting(reg, s.admissionOutcomesTotal, logger)
	s.admissionDuration = registerOrExisting(reg, s.admissionDuration, logger)
	s.notificationsTotal = registerOrExisting(reg, s.notificationsTotal, logger)
	s.notificationsDroppedTotal = registerOrExisting(reg, s.notificationsDroppedTotal, logger)
	return s
}

// registerOrExisting returns the already registered collector when c was
// registered before, so two sinks on one registry share series.
func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C, logger *zap.Logger) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		logger.Warn("metrics registration failed", zap.Error(err))
	}
	return c
}

func (s *PrometheusSink) AdmissionOutcome(outcome string, duration time.Duration) {
	s.admissionOutcomesTotal.WithLabelValues(outcome).Inc()
	s.admissionDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) NotificationResult(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.notificationsTotal.WithLabelValues(channel, result).Inc()
}

func (s *PrometheusSink) NotificationDropped() {
	s.notificationsDroppedTotal.Inc()
}
