package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"
)

// ErrorCode classifies a pipeline failure. Codes are stored on ingest job
// error rows and returned in HTTP error bodies.
type ErrorCode string

const (
	ErrTimeout            ErrorCode = "timeout"
	ErrContextCancelled   ErrorCode = "context_cancelled"
	ErrInvalidInput       ErrorCode = "invalid_input"
	ErrContentTooShort    ErrorCode = "content_too_short"
	ErrContentTooLarge    ErrorCode = "content_too_large"
	ErrLikelyBinary       ErrorCode = "likely_binary"
	ErrReadError          ErrorCode = "read_error"
	ErrDuplicateContent   ErrorCode = "duplicate_content"
	ErrStorageError       ErrorCode = "storage_error"
	ErrPublishError       ErrorCode = "publish_error"
	ErrServiceUnavailable ErrorCode = "service_unavailable"
	ErrProcessingError    ErrorCode = "processing_error"
)

// PipelineError is a classified failure of one pipeline stage
// (validate, persist, publish, ingest).
type PipelineError struct {
	Code     ErrorCode
	Stage    string
	Message  string
	Duration time.Duration
	Timeout  time.Duration
	Cause    error
}

func (e *PipelineError) Error() string {
	switch {
	case e.Timeout > 0 && e.Duration > 0:
		return fmt.Sprintf("%s: %s timed out after %s (limit: %s)", e.Code, e.Stage, e.Duration.Truncate(time.Second), e.Timeout.Truncate(time.Second))
	case e.Stage != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// sqlStateError matches driver errors that carry a SQLSTATE, such as
// *pgconn.PgError.
type sqlStateError interface {
	SQLState() string
}

// redisError matches errors returned by a Redis server.
type redisError interface {
	RedisError()
}

// messagePatterns classify untyped errors by substring, in order.
var messagePatterns = []struct {
	code     ErrorCode
	contains []string
}{
	{ErrInvalidInput, []string{"empty content", "content is empty", "no content"}},
	{ErrContentTooLarge, []string{"too large", "exceeds maximum", "content size"}},
	{ErrDuplicateContent, []string{"duplicate", "already exists"}},
	{ErrReadError, []string{"no such file", "permission denied", "reading"}},
	{ErrPublishError, []string{"redis", "publish"}},
	{ErrStorageError, []string{"database", "sqlstate", "storage"}},
	{ErrServiceUnavailable, []string{"connection refused", "unavailable", "no such host"}},
}

// ClassifyError wraps err in a *PipelineError for stage. An error that already
// is a *PipelineError is returned unchanged; nil stays nil.
func ClassifyError(err error, stage string) *PipelineError {
	if err == nil {
		return nil
	}

	var existing *PipelineError
	if errors.As(err, &existing) {
		return existing
	}

	pe := &PipelineError{Stage: stage, Cause: err, Code: classify(err), Message: err.Error()}
	switch pe.Code {
	case ErrTimeout:
		pe.Message = "operation timed out"
	case ErrContextCancelled:
		pe.Message = "operation cancelled"
	}
	return pe
}

func classify(err error) ErrorCode {
	var (
		sqlErr   sqlStateError
		redisErr redisError
		netErr   net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrContextCancelled
	case errors.Is(err, ErrUnavailable):
		return ErrServiceUnavailable
	case errors.Is(err, ErrConflict):
		return ErrStorageError
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return ErrReadError
	case errors.As(err, &sqlErr):
		return ErrStorageError
	case errors.As(err, &redisErr):
		return ErrPublishError
	case errors.As(err, &netErr):
		return ErrServiceUnavailable
	}

	lower := strings.ToLower(err.Error())
	for _, p := range messagePatterns {
		for _, s := range p.contains {
			if strings.Contains(lower, s) {
				return p.code
			}
		}
	}
	return ErrProcessingError
}

// CodeOf returns the code carried by err, or "" if err is not a *PipelineError.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsTimeout reports whether err is a classified timeout.
func IsTimeout(err error) bool {
	return CodeOf(err) == ErrTimeout
}

// IsErrorRetryable reports whether err carries a retryable code.
func IsErrorRetryable(err error) bool {
	return IsRetryable(CodeOf(err))
}
