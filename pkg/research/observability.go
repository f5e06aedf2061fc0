package research

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/rizome-dev/researchgo/pkg/models"
)

// Logger interface for custom logging
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector interface for metrics collection
type MetricsCollector interface {
	RecordLatency(operation string, duration time.Duration, labels map[string]string)
	RecordVariant(variant models.Variant, labels map[string]string)
	RecordError(operation string, err error, labels map[string]string)
}

// RequestHook is called before a request is made
type RequestHook func(ctx context.Context, operation string, question string) context.Context

// ResponseHook is called after a response is received
type ResponseHook func(ctx context.Context, operation string, question string, response *models.AnswerResponse, err error)

// ObservableClient wraps a Fetcher with logging, metrics and hooks
type ObservableClient struct {
	Fetcher
	logger        Logger
	metrics       MetricsCollector
	requestHooks  []RequestHook
	responseHooks []ResponseHook
	logRequests   bool
	logResponses  bool
}

// ObservabilityOptions contains options for observability
type ObservabilityOptions struct {
	Logger       Logger
	Metrics      MetricsCollector
	LogRequests  bool
	LogResponses bool
}

// NewObservableClient wraps next with observability
func NewObservableClient(next Fetcher, obsOpts ObservabilityOptions) *ObservableClient {
	return &ObservableClient{
		Fetcher:      next,
		logger:       obsOpts.Logger,
		metrics:      obsOpts.Metrics,
		logRequests:  obsOpts.LogRequests,
		logResponses: obsOpts.LogResponses,
	}
}

// AddRequestHook adds a request hook
func (o *ObservableClient) AddRequestHook(hook RequestHook) {
	o.requestHooks = append(o.requestHooks, hook)
}

// AddResponseHook adds a response hook
func (o *ObservableClient) AddResponseHook(hook ResponseHook) {
	o.responseHooks = append(o.responseHooks, hook)
}

// FetchAnswer fetches an answer with observability
func (o *ObservableClient) FetchAnswer(ctx context.Context, question string) (*models.AnswerResponse, error) {
	start := time.Now()
	operation := "fetch_answer"

	for _, hook := range o.requestHooks {
		ctx = hook(ctx, operation, question)
	}

	if o.logRequests && o.logger != nil {
		o.logger.Info("Submitting question", "chars", len(question))
	}

	resp, err := o.Fetcher.FetchAnswer(ctx, question)

	duration := time.Since(start)
	labels := map[string]string{
		"operation": operation,
		"status":    "success",
	}

	if err != nil {
		labels["status"] = "error"
		if o.metrics != nil {
			o.metrics.RecordError(operation, err, labels)
		}
		if o.logger != nil {
			o.logger.Error("Query failed",
				"error", err,
				"duration", duration,
			)
		}
	} else {
		variant := resp.Variant()
		labels["variant"] = variant.String()

		if o.logResponses && o.logger != nil {
			o.logger.Info("Query answered",
				"variant", variant,
				"duration", duration,
			)
		}
		if variant == models.VariantUnrecognized && o.logger != nil {
			o.logger.Warn("Unrecognized response status", "status", resp.Status)
		}

		if o.metrics != nil {
			o.metrics.RecordLatency(operation, duration, labels)
			o.metrics.RecordVariant(variant, labels)
		}
	}

	for _, hook := range o.responseHooks {
		hook(ctx, operation, question, resp, err)
	}

	return resp, err
}

// SimpleLogger implements Logger interface with standard log package
type SimpleLogger struct {
	level LogLevel
}

// LogLevel represents logging level
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel converts "debug", "info", "warn" or "error" to a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewSimpleLogger creates a new simple logger
func NewSimpleLogger(level LogLevel) *SimpleLogger {
	return &SimpleLogger{level: level}
}

func (l *SimpleLogger) Debug(msg string, fields ...interface{}) {
	if l.level <= LogLevelDebug {
		log.Printf("[DEBUG] %s %v", msg, fields)
	}
}

func (l *SimpleLogger) Info(msg string, fields ...interface{}) {
	if l.level <= LogLevelInfo {
		log.Printf("[INFO] %s %v", msg, fields)
	}
}

func (l *SimpleLogger) Warn(msg string, fields ...interface{}) {
	if l.level <= LogLevelWarn {
		log.Printf("[WARN] %s %v", msg, fields)
	}
}

func (l *SimpleLogger) Error(msg string, fields ...interface{}) {
	if l.level <= LogLevelError {
		log.Printf("[ERROR] %s %v", msg, fields)
	}
}

// SimpleMetricsCollector implements MetricsCollector with in-memory storage
type SimpleMetricsCollector struct {
	mu        sync.Mutex
	latencies map[string][]time.Duration
	variants  map[string]int
	errors    map[string]int
}

// NewSimpleMetricsCollector creates a new simple metrics collector
func NewSimpleMetricsCollector() *SimpleMetricsCollector {
	return &SimpleMetricsCollector{
		latencies: make(map[string][]time.Duration),
		variants:  make(map[string]int),
		errors:    make(map[string]int),
	}
}

func (m *SimpleMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[operation] = append(m.latencies[operation], duration)
}

func (m *SimpleMetricsCollector) RecordVariant(variant models.Variant, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variants[variant.String()]++
}

func (m *SimpleMetricsCollector) RecordError(operation string, err error, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[operation]++
}

// GetSummary returns a summary of collected metrics
func (m *SimpleMetricsCollector) GetSummary() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	variants := make(map[string]int, len(m.variants))
	for k, v := range m.variants {
		variants[k] = v
	}
	errs := make(map[string]int, len(m.errors))
	for k, v := range m.errors {
		errs[k] = v
	}

	summary := map[string]interface{}{
		"variants": variants,
		"errors":   errs,
	}

	// Calculate average latencies
	avgLatencies := make(map[string]float64)
	for key, durations := range m.latencies {
		if len(durations) > 0 {
			var total time.Duration
			for _, d := range durations {
				total += d
			}
			avgLatencies[key] = float64(total) / float64(len(durations)) / float64(time.Millisecond)
		}
	}
	summary["avg_latency_ms"] = avgLatencies

	return summary
}
