package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rizome-dev/researchgo/pkg/errors"
	"github.com/rizome-dev/researchgo/pkg/models"
)

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debug(msg string, fields ...interface{}) {
	l.messages = append(l.messages, "debug:"+msg)
}
func (l *recordingLogger) Info(msg string, fields ...interface{}) {
	l.messages = append(l.messages, "info:"+msg)
}
func (l *recordingLogger) Warn(msg string, fields ...interface{}) {
	l.messages = append(l.messages, "warn:"+msg)
}
func (l *recordingLogger) Error(msg string, fields ...interface{}) {
	l.messages = append(l.messages, "error:"+msg)
}

type ctxKey struct{}

func TestObservableClientSuccess(t *testing.T) {
	next := fetchFunc(func(ctx context.Context, q string) (*models.AnswerResponse, error) {
		assert.Equal(t, "tagged", ctx.Value(ctxKey{}))
		return models.NewCompleteResponse("ok"), nil
	})

	logger := &recordingLogger{}
	metrics := NewSimpleMetricsCollector()
	client := NewObservableClient(next, ObservabilityOptions{
		Logger:       logger,
		Metrics:      metrics,
		LogRequests:  true,
		LogResponses: true,
	})

	client.AddRequestHook(func(ctx context.Context, operation, question string) context.Context {
		return context.WithValue(ctx, ctxKey{}, "tagged")
	})
	var hookResp *models.AnswerResponse
	client.AddResponseHook(func(ctx context.Context, operation, question string, resp *models.AnswerResponse, err error) {
		hookResp = resp
	})

	resp, err := client.FetchAnswer(context.Background(), "q")
	require.NoError(t, err)
	assert.Same(t, resp, hookResp)
	assert.Equal(t, []string{"info:Submitting question", "info:Query answered"}, logger.messages)

	summary := metrics.GetSummary()
	assert.Equal(t, map[string]int{"complete": 1}, summary["variants"])
	assert.Contains(t, summary["avg_latency_ms"], "fetch_answer")
}

func TestObservableClientFailure(t *testing.T) {
	next := fetchFunc(func(ctx context.Context, q string) (*models.AnswerResponse, error) {
		return nil, errors.NewStatusError(500, nil)
	})

	logger := &recordingLogger{}
	metrics := NewSimpleMetricsCollector()
	client := NewObservableClient(next, ObservabilityOptions{Logger: logger, Metrics: metrics})

	_, err := client.FetchAnswer(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, []string{"error:Query failed"}, logger.messages)
	assert.Equal(t, map[string]int{"fetch_answer": 1}, metrics.GetSummary()["errors"])
}

func TestObservableClientWarnsOnUnrecognized(t *testing.T) {
	next := fetchFunc(func(ctx context.Context, q string) (*models.AnswerResponse, error) {
		return &models.AnswerResponse{Status: "unknown_thing"}, nil
	})

	logger := &recordingLogger{}
	client := NewObservableClient(next, ObservabilityOptions{Logger: logger})

	_, err := client.FetchAnswer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"warn:Unrecognized response status"}, logger.messages)
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, level)

	level, err = ParseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, level)

	_, err = ParseLogLevel("loud")
	assert.Error(t, err)
}
