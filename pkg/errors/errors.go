// Package errors holds the error vocabulary of the transcript pipeline.
//
// Sentinels describe domain conditions and are matched with errors.Is.
// Failures that cross a pipeline stage are reported as *PipelineError values
// carrying an ErrorCode, which callers map to exit messages, HTTP statuses and
// ingest job error rows.
//
//	import pferrors "github.com/otherjamesbrown/penf-transcripts/pkg/errors"
package errors

import "errors"

var (
	// ErrNotFound means no transcript or job has the requested id.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a write collided with existing data.
	ErrConflict = errors.New("conflict")

	// ErrValidation means transcript content was rejected before parsing.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState means the job is not in a state that allows the operation.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnavailable means a backing service is not configured or not reachable.
	ErrUnavailable = errors.New("unavailable")
)

// Is* report whether err's chain contains the matching sentinel.

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
