package submitter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rizome-dev/researchgo/pkg/errors"
	"github.com/rizome-dev/researchgo/pkg/models"
	"github.com/rizome-dev/researchgo/pkg/research"
)

type fetchFunc func(ctx context.Context, question string) (*models.AnswerResponse, error)

func (f fetchFunc) FetchAnswer(ctx context.Context, question string) (*models.AnswerResponse, error) {
	return f(ctx, question)
}

type reported struct {
	question string
	err      error
}

func TestEmptyQuestionIsNoop(t *testing.T) {
	var calls int32
	fetcher := fetchFunc(func(ctx context.Context, q string) (*models.AnswerResponse, error) {
		atomic.AddInt32(&calls, 1)
		return models.NewCompleteResponse("first"), nil
	})

	var reports []reported
	s := New(fetcher, WithErrorReporter(func(q string, err error) {
		reports = append(reports, reported{q, err})
	}))

	prior, err := s.Submit(context.Background(), "first")
	require.NoError(t, err)

	for _, q := range []string{"", "   ", "\t\n"} {
		resp, err := s.Submit(context.Background(), q)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, reports)

	state := s.Snapshot()
	assert.Same(t, prior, state.Result)
	assert.Equal(t, PhaseResolved, state.Phase)
}

func TestSubmitResolves(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"complete","answer":"Process by which plants convert light to energy.","citations":[{"id":1,"title":"Bio Text","url":"https://example.org/bio"}]}`))
	}))
	defer server.Close()

	s := New(research.NewClient(research.WithBaseURL(server.URL)))
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)

	resp, err := s.Submit(context.Background(), "What is photosynthesis?")
	require.NoError(t, err)

	state := s.Snapshot()
	assert.Equal(t, PhaseResolved, state.Phase)
	assert.False(t, state.IsSubmitting())
	assert.Same(t, resp, state.Result)
	assert.Equal(t, "What is photosynthesis?", state.Question)
	assert.True(t, s.CanSubmit())
}

func TestSubmitFailureKeepsPriorResult(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"status":"need_more_info","new_queries":["a"]}`))
	}))
	defer server.Close()

	var reports []reported
	s := New(research.NewClient(research.WithBaseURL(server.URL)),
		WithErrorReporter(func(q string, err error) {
			reports = append(reports, reported{q, err})
		}),
	)

	prior, err := s.Submit(context.Background(), "first")
	require.NoError(t, err)

	fail.Store(true)
	resp, err := s.Submit(context.Background(), "second")
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.IsTransportError(err))

	require.Len(t, reports, 1)
	assert.Equal(t, "second", reports[0].question)
	assert.Equal(t, err, reports[0].err)

	state := s.Snapshot()
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.False(t, state.IsSubmitting())
	assert.Same(t, prior, state.Result)
	assert.Equal(t, err, state.Err)
	assert.True(t, s.CanSubmit())
}

func TestMalformedResponseIsReported(t *testing.T) {
	fetcher := fetchFunc(func(ctx context.Context, q string) (*models.AnswerResponse, error) {
		return nil, errors.NewMalformedResponseError("bad", nil, nil)
	})

	var got error
	s := New(fetcher, WithErrorReporter(func(_ string, err error) { got = err }))

	_, err := s.Submit(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.IsMalformedResponse(got))
	assert.Equal(t, PhaseFailed, s.Snapshot().Phase)
	assert.Nil(t, s.Snapshot().Result)
}

func TestSingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := fetchFunc(func(ctx context.Context, q string) (*models.AnswerResponse, error) {
		close(started)
		<-release
		return models.NewCompleteResponse(q), nil
	})

	s := New(fetcher)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "slow")
		done <- err
	}()

	<-started
	assert.True(t, s.Snapshot().IsSubmitting())
	assert.False(t, s.CanSubmit())

	_, err := s.Submit(context.Background(), "impatient")
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-done)

	assert.True(t, s.CanSubmit())
	state := s.Snapshot()
	assert.Equal(t, PhaseResolved, state.Phase)
	assert.Equal(t, "slow", state.Result.Complete.Answer)
}

func TestCancelKeepsPriorResultAndDoesNotReport(t *testing.T) {
	started := make(chan struct{}, 1)
	fetcher := fetchFunc(func(ctx context.Context, q string) (*models.AnswerResponse, error) {
		if q == "first" {
			return models.NewCompleteResponse("first"), nil
		}
		started <- struct{}{}
		<-ctx.Done()
		return nil, errors.NewNetworkError(ctx.Err())
	})

	reportCount := 0
	s := New(fetcher, WithErrorReporter(func(string, error) { reportCount++ }))

	prior, err := s.Submit(context.Background(), "first")
	require.NoError(t, err)
	assert.False(t, s.Cancel())

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "second")
		done <- err
	}()

	<-started
	assert.True(t, s.Cancel())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled submission did not return")
	}

	assert.Zero(t, reportCount)
	state := s.Snapshot()
	assert.Equal(t, PhaseResolved, state.Phase)
	assert.Same(t, prior, state.Result)
	assert.Nil(t, state.Err)
}

func TestCancelAfterFetchSucceededDropsResult(t *testing.T) {
	var s *Submitter
	fetcher := fetchFunc(func(ctx context.Context, q string) (*models.AnswerResponse, error) {
		if q == "second" {
			// The answer arrives, but the user cancels before it is stored
			assert.True(t, s.Cancel())
		}
		return models.NewCompleteResponse(q), nil
	})

	reportCount := 0
	s = New(fetcher, WithErrorReporter(func(string, error) { reportCount++ }))

	prior, err := s.Submit(context.Background(), "first")
	require.NoError(t, err)

	resp, err := s.Submit(context.Background(), "second")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, reportCount)
	state := s.Snapshot()
	assert.Equal(t, PhaseResolved, state.Phase)
	assert.Same(t, prior, state.Result)
	assert.True(t, s.CanSubmit())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "submitting", PhaseSubmitting.String())
	assert.Equal(t, "resolved", PhaseResolved.String())
	assert.Equal(t, "failed", PhaseFailed.String())
}
