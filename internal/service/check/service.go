// Package check runs a single form submission through the password policy
// and, when it passes, the hasher. It owns the submit-once state machine:
//
//	FRESH --check, non-empty, flag unset--> REJECTED (violations, flag unchanged)
//	FRESH --check, non-empty, flag unset--> ACCEPTED (hash computed once, flag set)
//	any submission while the flag is set -> redirect, nothing computed
//	fresh visit (Reset)                  -> FRESH, flag cleared
package check

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/pwcheck/internal/policy"
	"github.com/jwalitptl/pwcheck/internal/session"
	"github.com/jwalitptl/pwcheck/pkg/metrics"
	"github.com/jwalitptl/pwcheck/pkg/security"
)

// ActionCheck is the only form action that triggers a check.
const ActionCheck = "check"

// Outcome of a submission.
type Outcome int

const (
	// OutcomeRedirect means nothing was evaluated; show a fresh form.
	OutcomeRedirect Outcome = iota
	// OutcomeRejected means the password violated the policy.
	OutcomeRejected
	// OutcomeAccepted means the password passed and was hashed.
	OutcomeAccepted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return metrics.OutcomeRejected
	case OutcomeAccepted:
		return metrics.OutcomeAccepted
	default:
		return metrics.OutcomeIgnored
	}
}

// Submission is the raw form input.
type Submission struct {
	Action   string
	Password string
}

// Result is what the transport layer renders.
type Result struct {
	Outcome    Outcome
	Violations []string
	Hash       string
	HashType   string
}

type Service struct {
	hasher  security.PasswordHasher
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewService creates a check service. m may be nil.
func NewService(hasher security.PasswordHasher, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		hasher:  hasher,
		metrics: m,
		logger:  logger,
	}
}

// Reset returns the session to the FRESH state.
func (s *Service) Reset(st *session.State) {
	st.HashShown = false
}

// Submit evaluates one submission against st. st is updated in place; the
// caller persists it. The flag is only set after a hash was produced, so a
// hashing failure leaves the session resubmittable.
func (s *Service) Submit(ctx context.Context, st *session.State, sub Submission) (*Result, error) {
	if st.HashShown {
		s.count(OutcomeRedirect)
		return &Result{Outcome: OutcomeRedirect}, nil
	}

	password := strings.TrimSpace(sub.Password)
	if sub.Action != ActionCheck || password == "" {
		s.count(OutcomeRedirect)
		return &Result{Outcome: OutcomeRedirect}, nil
	}

	res := policy.Validate(password)
	if !res.Valid {
		s.count(OutcomeRejected)
		return &Result{Outcome: OutcomeRejected, Violations: res.Violations}, nil
	}

	record, err := s.hash(ctx, password)
	if err != nil {
		return nil, err
	}

	st.HashShown = true
	s.count(OutcomeAccepted)
	return &Result{
		Outcome:  OutcomeAccepted,
		Hash:     record,
		HashType: s.hasher.Label(),
	}, nil
}

func (s *Service) hash(ctx context.Context, password string) (string, error) {
	alg := string(s.hasher.Algorithm())
	start := time.Now()

	record, err := s.hasher.Hash(password)
	if s.metrics != nil {
		s.metrics.HashLatency.WithLabelValues(alg).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.HashFailures.WithLabelValues(alg).Inc()
			s.metrics.Submissions.WithLabelValues(metrics.OutcomeFailed).Inc()
		}
		s.logger.Error().Err(err).Str("algorithm", alg).Str("request_id", requestID(ctx)).Msg("password hashing failed")
		return "", fmt.Errorf("hash password: %w", err)
	}
	if record == "" {
		return "", fmt.Errorf("hash password: %w", &security.HashBackendError{
			Algorithm: s.hasher.Algorithm(),
			Err:       fmt.Errorf("empty record"),
		})
	}
	return record, nil
}

// Validate runs the policy on the trimmed password without hashing or
// touching any session.
func (s *Service) Validate(password string) policy.Result {
	return policy.Validate(strings.TrimSpace(password))
}

func (s *Service) count(o Outcome) {
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(o.String()).Inc()
	}
}

type ctxKey struct{}

// WithRequestID attaches a request id used in log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
