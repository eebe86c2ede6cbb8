package store

import (
	"context"
	"time"
)

type timeoutStore struct {
	next    RecordStore
	timeout time.Duration
}

// WithTimeout bounds every call on next by d. A non-positive d returns next
// unchanged.
func WithTimeout(next RecordStore, d time.Duration) RecordStore {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: d}
}

func (s *timeoutStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Query(ctx, collection, filters...)
}

func (s *timeoutStore) Insert(ctx context.Context, collection string, row Row) (Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Insert(ctx, collection, row)
}

func (s *timeoutStore) Update(ctx context.Context, collection, id string, patch Row) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Update(ctx, collection, id, patch)
}
