package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQLError struct{}

func (fakeSQLError) Error() string    { return "ERROR: relation does not exist" }
func (fakeSQLError) SQLState() string { return "42P01" }

type fakeRedisError struct{}

func (fakeRedisError) Error() string { return "WRONGTYPE Operation against a key" }
func (fakeRedisError) RedisError()   {}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil, "normalize"))
}

func TestClassifyError_Context(t *testing.T) {
	result := ClassifyError(context.DeadlineExceeded, "persist")
	require.NotNil(t, result)
	assert.Equal(t, ErrTimeout, result.Code)
	assert.Equal(t, "persist", result.Stage)
	assert.Equal(t, "operation timed out", result.Message)
	assert.Equal(t, context.DeadlineExceeded, result.Cause)

	result = ClassifyError(fmt.Errorf("saving: %w", context.Canceled), "persist")
	assert.Equal(t, ErrContextCancelled, result.Code)
	assert.Equal(t, "operation cancelled", result.Message)
}

func TestClassifyError_Patterns(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"conflict sentinel", fmt.Errorf("save: %w", ErrConflict), ErrStorageError},
		{"missing file typed", fmt.Errorf("open: %w", fs.ErrNotExist), ErrReadError},
		{"sqlstate", fmt.Errorf("insert: %w", fakeSQLError{}), ErrStorageError},
		{"redis reply", fmt.Errorf("xadd: %w", fakeRedisError{}), ErrPublishError},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, ErrServiceUnavailable},
		{"unavailable sentinel", fmt.Errorf("redis: %w", ErrUnavailable), ErrServiceUnavailable},
		{"empty content", errors.New("content is empty"), ErrInvalidInput},
		{"too large", errors.New("file too large to read"), ErrContentTooLarge},
		{"duplicate", errors.New("duplicate key value violates unique constraint"), ErrDuplicateContent},
		{"missing file", errors.New("open /tmp/x.vtt: no such file or directory"), ErrReadError},
		{"redis publish", errors.New("publishing event: redis: connection pool timeout"), ErrPublishError},
		{"database", errors.New("database: SQLSTATE 42P01"), ErrStorageError},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrServiceUnavailable},
		{"unknown", errors.New("something strange"), ErrProcessingError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyError(tt.err, "stage")
			require.NotNil(t, result)
			assert.Equal(t, tt.want, result.Code)
			assert.Equal(t, tt.err, result.Cause)
		})
	}
}

func TestClassifyError_PassesThroughPipelineError(t *testing.T) {
	original := &PipelineError{Code: ErrLikelyBinary, Stage: "validate", Message: "binary"}
	wrapped := fmt.Errorf("ingest file: %w", original)

	assert.Same(t, original, ClassifyError(wrapped, "batch"))
}

func TestPipelineError_Error(t *testing.T) {
	withTimeout := &PipelineError{
		Code:     ErrTimeout,
		Stage:    "persist",
		Duration: 31 * time.Second,
		Timeout:  30 * time.Second,
	}
	assert.Equal(t, "timeout: persist timed out after 31s (limit: 30s)", withTimeout.Error())

	withStage := &PipelineError{Code: ErrContentTooShort, Stage: "validate", Message: "too short"}
	assert.Equal(t, "content_too_short: validate: too short", withStage.Error())

	noStage := &PipelineError{Code: ErrProcessingError, Message: "boom"}
	assert.Equal(t, "processing_error: boom", noStage.Error())
}

func TestPipelineError_Unwrap(t *testing.T) {
	pe := &PipelineError{Code: ErrInvalidInput, Cause: ErrValidation}
	assert.True(t, errors.Is(pe, ErrValidation))
	assert.True(t, IsValidation(fmt.Errorf("wrapped: %w", pe)))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrLikelyBinary, CodeOf(fmt.Errorf("x: %w", &PipelineError{Code: ErrLikelyBinary})))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(&PipelineError{Code: ErrTimeout}))
	assert.False(t, IsTimeout(&PipelineError{Code: ErrStorageError}))
	assert.False(t, IsTimeout(errors.New("timeout")))
}

func TestIsErrorRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"storage", &PipelineError{Code: ErrStorageError}, true},
		{"wrapped publish", fmt.Errorf("x: %w", &PipelineError{Code: ErrPublishError}), true},
		{"validation", &PipelineError{Code: ErrContentTooShort}, false},
		{"unknown code", &PipelineError{Code: "unknown"}, false},
		{"plain error", errors.New("nope"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsErrorRetryable(tt.err))
		})
	}
}
