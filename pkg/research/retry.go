package research

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rizome-dev/researchgo/pkg/errors"
	"github.com/rizome-dev/researchgo/pkg/models"
)

// RetryConfig represents retry configuration
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64

	// Retryable decides whether an error is worth another attempt
	Retryable func(error) bool
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:    3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
		Retryable:     errors.IsRetryable,
	}
}

// RetryClient wraps a Fetcher with retry logic. Plain Client never retries.
type RetryClient struct {
	Fetcher
	config *RetryConfig
	logger Logger
}

// NewRetryClient creates a new retry client
func NewRetryClient(next Fetcher, retryConfig *RetryConfig, logger Logger) *RetryClient {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if retryConfig.Retryable == nil {
		retryConfig.Retryable = errors.IsRetryable
	}

	return &RetryClient{
		Fetcher: next,
		config:  retryConfig,
		logger:  logger,
	}
}

// FetchAnswer fetches an answer, retrying retryable failures with backoff
func (r *RetryClient) FetchAnswer(ctx context.Context, question string) (*models.AnswerResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := r.Fetcher.FetchAnswer(ctx, question)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !r.config.Retryable(err) {
			return nil, err
		}

		if attempt < r.config.MaxRetries && r.logger != nil {
			r.logger.Warn("Retrying query",
				"attempt", attempt+1,
				"max_retries", r.config.MaxRetries,
				"error", err,
			)
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateDelay calculates the delay for a given attempt
func (r *RetryClient) calculateDelay(attempt int) time.Duration {
	// Exponential backoff
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	jitter := delay * r.config.JitterFactor * (2*rand.Float64() - 1)
	delay += jitter

	return time.Duration(delay)
}

// ErrCircuitOpen is returned while the circuit breaker rejects requests
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// CircuitBreaker implements circuit breaker pattern
type CircuitBreaker struct {
	next             Fetcher
	failureThreshold int
	resetTimeout     time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
	now         func() time.Time
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(next Fetcher, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		next:             next,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            CircuitClosed,
		now:              time.Now,
	}
}

// FetchAnswer fetches an answer unless the circuit is open. Only transport
// failures count against the circuit; malformed bodies do not.
func (cb *CircuitBreaker) FetchAnswer(ctx context.Context, question string) (*models.AnswerResponse, error) {
	if err := cb.checkState(); err != nil {
		return nil, err
	}

	resp, err := cb.next.FetchAnswer(ctx, question)

	cb.recordResult(err)

	return resp, err
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// checkState checks if the circuit allows requests
func (cb *CircuitBreaker) checkState() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.failures = 0
		} else {
			return ErrCircuitOpen
		}
	}
	return nil
}

// recordResult records the result of a request
func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// A cancelled call says nothing about the service's health
	if stderrors.Is(err, context.Canceled) {
		return
	}

	if err == nil || !errors.IsTransportError(err) {
		if cb.state == CircuitHalfOpen {
			cb.state = CircuitClosed
		}
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()

	if cb.failures >= cb.failureThreshold || cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
	}
}
