package session

import (
	"context"
	"time"

	"github.com/jwalitptl/pwcheck/pkg/metrics"
)

type instrumentedStore struct {
	Store
	m *metrics.Metrics
}

// Instrument wraps s so every operation is counted and timed.
func Instrument(s Store, m *metrics.Metrics) Store {
	if m == nil {
		return s
	}
	return &instrumentedStore{Store: s, m: m}
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.m.SessionOperations.WithLabelValues(op, status).Inc()
	s.m.SessionLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore) Load(ctx context.Context, id string) (State, error) {
	start := time.Now()
	st, err := s.Store.Load(ctx, id)
	s.observe("load", start, err)
	return st, err
}

func (s *instrumentedStore) Save(ctx context.Context, id string, st State) error {
	start := time.Now()
	err := s.Store.Save(ctx, id, st)
	s.observe("save", start, err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.Store.Delete(ctx, id)
	s.observe("delete", start, err)
	return err
}

func (s *instrumentedStore) Claim(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := s.Store.Claim(ctx, id)
	s.observe("claim", start, err)
	return ok, err
}
