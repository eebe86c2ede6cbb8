package metrics

import "time"

// Sink records admission and notification metrics.
// All methods must be non-blocking and fire-and-forget.
type Sink interface {
	AdmissionOutcome(outcome string, duration time.Duration)
	NotificationResult(channel string, err error)
	NotificationDropped()
}

// NoopSink discards everything.
type NoopSink struct{}

func (NoopSink) AdmissionOutcome(string, time.Duration) {}
func (NoopSink) NotificationResult(string, error)       {}
func (NoopSink) NotificationDropped()                   {}
