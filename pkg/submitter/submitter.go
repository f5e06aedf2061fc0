// Package submitter owns the question submission lifecycle. It is a small
// state machine over Idle, Submitting, Resolved and Failed that allows at
// most one submission in flight.
package submitter

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rizome-dev/researchgo/pkg/models"
	"github.com/rizome-dev/researchgo/pkg/research"
)

var (
	// ErrEmptyQuestion is returned when the trimmed question is empty.
	// Nothing is sent and no error is reported.
	ErrEmptyQuestion = errors.New("submitter: question is empty")

	// ErrSubmissionInFlight is returned when Submit is called while
	// another submission is outstanding.
	ErrSubmissionInFlight = errors.New("submitter: a submission is already in flight")
)

// Phase is the lifecycle state of a Submitter
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseResolved
	PhaseFailed
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseResolved:
		return "resolved"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a read-only snapshot of a Submitter
type State struct {
	Phase    Phase
	Question string
	Result   *models.AnswerResponse
	Err      error
}

// IsSubmitting reports whether a submission is in flight
func (s State) IsSubmitting() bool {
	return s.Phase == PhaseSubmitting
}

// ErrorReporter receives submission failures. The host decides how to
// present them.
type ErrorReporter func(question string, err error)

// Option configures a Submitter
type Option func(*Submitter)

// WithErrorReporter sets where failures are reported
func WithErrorReporter(report ErrorReporter) Option {
	return func(s *Submitter) {
		s.report = report
	}
}

// WithLogger sets the logger
func WithLogger(logger research.Logger) Option {
	return func(s *Submitter) {
		s.logger = logger
	}
}

// Submitter drives submissions against a research.Fetcher
type Submitter struct {
	fetcher research.Fetcher
	report  ErrorReporter
	logger  research.Logger

	mu       sync.Mutex
	phase    Phase
	question string
	result   *models.AnswerResponse
	err      error
	cancel   context.CancelFunc
}

// New creates a Submitter in the Idle phase
func New(fetcher research.Fetcher, opts ...Option) *Submitter {
	s := &Submitter{fetcher: fetcher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends question and blocks until the exchange completes.
//
// On success the result is replaced and the phase becomes Resolved. On
// failure the error goes to the ErrorReporter, the phase becomes Failed and
// the previous result is kept. A submission cancelled through Cancel is not
// reported and also keeps the previous result.
func (s *Submitter) Submit(ctx context.Context, question string) (*models.AnswerResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	s.mu.Lock()
	if s.phase == PhaseSubmitting {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	ctx, cancel := context.WithCancel(ctx)
	s.phase = PhaseSubmitting
	s.question = question
	s.cancel = cancel
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("Submission started", "question", question)
	}

	resp, err := s.fetcher.FetchAnswer(ctx, question)

	// Cancel takes s.mu, so checking ctx under the lock also catches a
	// Cancel that lands after the fetch succeeded.
	s.mu.Lock()
	cancelled := errors.Is(ctx.Err(), context.Canceled) && (err == nil || errors.Is(err, context.Canceled))
	cancel()
	s.cancel = nil
	switch {
	case cancelled:
		if err == nil {
			err = ctx.Err()
		}
		s.err = nil
		s.phase = s.settledPhase()
	case err == nil:
		s.result = resp
		s.err = nil
		s.phase = PhaseResolved
	default:
		s.err = err
		s.phase = PhaseFailed
	}
	s.mu.Unlock()

	if err != nil {
		if cancelled {
			if s.logger != nil {
				s.logger.Debug("Submission cancelled", "question", question)
			}
			return nil, err
		}
		if s.logger != nil {
			s.logger.Warn("Submission failed", "error", err)
		}
		if s.report != nil {
			s.report(question, err)
		}
		return nil, err
	}

	return resp, nil
}

// Cancel aborts the in-flight submission, if any, and reports whether there
// was one.
func (s *Submitter) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// CanSubmit reports whether the submit trigger should be enabled
func (s *Submitter) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase != PhaseSubmitting
}

// Snapshot returns the current state
func (s *Submitter) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Phase:    s.phase,
		Question: s.question,
		Result:   s.result,
		Err:      s.err,
	}
}

// settledPhase is the phase to return to after a cancelled submission.
// Callers hold s.mu.
func (s *Submitter) settledPhase() Phase {
	if s.result != nil {
		return PhaseResolved
	}
	return PhaseIdle
}
