package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorEmbedding    ErrorCode = "EMBEDDING_FAILURE"
	ErrorRetrieval    ErrorCode = "RETRIEVAL_FAILURE"
	ErrorModelStream  ErrorCode = "MODEL_STREAM_FAILURE"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// MetadataError reports a match whose citation metadata could not be decoded.
type MetadataError struct {
	MatchID string
	Err     error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("usecase: decode metadata of match %q: %v", e.MatchID, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// upstreamError classifies a collaborator failure. Rate limiting keeps the
// failure code and is surfaced through the reason.
func upstreamError(code ErrorCode, op string, err error) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(code, op+"_rate_limited", err)
	}
	return newError(code, op+"_error", err)
}
