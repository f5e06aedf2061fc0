package errors

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// maxDetailLength caps how much of a raw error body ends up in a message
const maxDetailLength = 200

// TransportKind tells apart the two ways an exchange with the answering service can fail
type TransportKind int

const (
	// TransportKindNetwork indicates the request never produced an HTTP response
	TransportKindNetwork TransportKind = iota

	// TransportKindStatus indicates the service answered with a non-2xx status
	TransportKindStatus
)

// String returns a short name for the kind
func (k TransportKind) String() string {
	switch k {
	case TransportKindNetwork:
		return "network"
	case TransportKindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// ErrorResponse is the error body shape returned by the answering service.
// Detail is either a string or a list of validation problems.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// TransportError represents a failed exchange with the answering service
type TransportError struct {
	Kind       TransportKind
	StatusCode int
	Detail     string
	Err        error
}

// NewNetworkError wraps a lower-level failure such as a refused connection
func NewNetworkError(err error) *TransportError {
	return &TransportError{Kind: TransportKindNetwork, Err: err}
}

// NewStatusError builds a TransportError from a non-2xx response body
func NewStatusError(statusCode int, body []byte) *TransportError {
	return &TransportError{
		Kind:       TransportKindStatus,
		StatusCode: statusCode,
		Detail:     extractDetail(body),
	}
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Kind == TransportKindStatus {
		if e.Detail != "" {
			return fmt.Sprintf("answering service returned status %d: %s", e.StatusCode, e.Detail)
		}
		return fmt.Sprintf("answering service returned status %d", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("could not reach answering service: %v", e.Err)
	}
	return "could not reach answering service"
}

// Unwrap returns the underlying network error, if any
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsServerError returns true for 5xx responses
func (e *TransportError) IsServerError() bool {
	return e.Kind == TransportKindStatus && e.StatusCode >= 500
}

// MalformedResponseError is returned when a 2xx body is not a valid answer response
type MalformedResponseError struct {
	Reason string
	Body   []byte
	Err    error
}

// NewMalformedResponseError creates a MalformedResponseError
func NewMalformedResponseError(reason string, body []byte, err error) *MalformedResponseError {
	return &MalformedResponseError{Reason: reason, Body: body, Err: err}
}

// Error implements the error interface
func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed answer response: %s: %v", e.Reason, e.Err)
	}
	return "malformed answer response: " + e.Reason
}

// Unwrap returns the underlying decoding error, if any
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a *TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return stderrors.As(err, &te)
}

// IsMalformedResponse reports whether err is or wraps a *MalformedResponseError
func IsMalformedResponse(err error) bool {
	var me *MalformedResponseError
	return stderrors.As(err, &me)
}

// IsRetryable returns true for failures a second attempt might fix:
// network errors other than cancellation, 408, 429 and 5xx.
func IsRetryable(err error) bool {
	var te *TransportError
	if !stderrors.As(err, &te) {
		return false
	}

	switch te.Kind {
	case TransportKindNetwork:
		return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
	case TransportKindStatus:
		return te.StatusCode == 408 || te.StatusCode == 429 || te.StatusCode >= 500
	}
	return false
}

func extractDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Detail) > 0 {
		var msg string
		if err := json.Unmarshal(errResp.Detail, &msg); err == nil {
			return msg
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, errResp.Detail); err == nil {
			return truncate(compact.String())
		}
	}

	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) <= maxDetailLength {
		return s
	}
	return s[:maxDetailLength] + "..."
}
