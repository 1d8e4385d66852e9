package metrics

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/store"
)

// Operation label values.
const (
	OpStoreOrUpdate  = "store_or_update"
	OpAuthenticate   = "authenticate"
	OpInvalidateUser = "invalidate_user"
	OpClear          = "clear"
	OpLength         = "length"
)

type instrumented struct {
	next store.TokenStore
	m    *Metrics
}

// Instrument wraps ts so that every call is counted and timed. Results and
// errors pass through unchanged.
func Instrument(ts store.TokenStore, m *Metrics) store.TokenStore {
	return &instrumented{next: ts, m: m}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	s.m.ObserveDuration(op, time.Since(start).Seconds())
	if err != nil {
		s.m.RecordOperation(op, ResultError)
		return
	}
	s.m.RecordOperation(op, ResultOK)
}

func (s *instrumented) Authenticate(ctx context.Context, token, uid string) (bool, string, error) {
	start := time.Now()
	ok, origin, err := s.next.Authenticate(ctx, token, uid)

	s.m.ObserveDuration(OpAuthenticate, time.Since(start).Seconds())
	switch {
	case err != nil:
		s.m.RecordOperation(OpAuthenticate, ResultError)
	case ok:
		s.m.RecordOperation(OpAuthenticate, ResultAccepted)
	default:
		s.m.RecordOperation(OpAuthenticate, ResultRejected)
	}
	return ok, origin, err
}

func (s *instrumented) StoreOrUpdate(ctx context.Context, token, uid string, ttl time.Duration, originURL string) error {
	start := time.Now()
	err := s.next.StoreOrUpdate(ctx, token, uid, ttl, originURL)
	s.observe(OpStoreOrUpdate, start, err)
	return err
}

func (s *instrumented) InvalidateUser(ctx context.Context, uid string) error {
	start := time.Now()
	err := s.next.InvalidateUser(ctx, uid)
	s.observe(OpInvalidateUser, start, err)
	return err
}

func (s *instrumented) Clear(ctx context.Context) error {
	start := time.Now()
	err := s.next.Clear(ctx)
	s.observe(OpClear, start, err)
	return err
}

func (s *instrumented) Length(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.next.Length(ctx)
	s.observe(OpLength, start, err)
	if err == nil {
		s.m.SetStoredRecords(float64(n))
	}
	return n, err
}
