package research

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rizome-dev/researchgo/pkg/errors"
	"github.com/rizome-dev/researchgo/pkg/models"
)

// Fetcher asks the answering service a question.
// Client, RetryClient, ObservableClient and CircuitBreaker all satisfy it.
type Fetcher interface {
	FetchAnswer(ctx context.Context, question string) (*models.AnswerResponse, error)
}

// FetchAnswer sends exactly one query request. It fails with
// *errors.TransportError when the service is unreachable or answers with a
// non-2xx status, and with *errors.MalformedResponseError when a 2xx body is
// not a valid answer response.
func (c *Client) FetchAnswer(ctx context.Context, question string) (*models.AnswerResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, QueryPath, models.QueryRequest{Question: question})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, errors.NewMalformedResponseError(
			fmt.Sprintf("body exceeds %d bytes", c.maxResponseSize), nil, nil)
	}

	return models.ParseAnswerResponse(body)
}

// Health checks that the service is reachable and answering with 2xx
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, MetricsPath, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
