package errors

import "sort"

type codeInfo struct {
	retryable   bool
	description string
	action      string
}

// defaultAction is shown for codes without a specific suggestion.
const defaultAction = "Re-run with --debug and check the logs"

var codes = map[ErrorCode]codeInfo{
	ErrTimeout:            {true, "Operation exceeded time limit", "Raise the limit with --timeout or PENF_TIMEOUT"},
	ErrContextCancelled:   {false, "Operation cancelled", "Check whether the cancellation was intended"},
	ErrInvalidInput:       {false, "Transcript content is empty or missing", "Check the source file is not empty: penf-transcripts validate <file>"},
	ErrContentTooShort:    {false, "Transcript is shorter than the minimum length", "Lower the threshold with --min-length or validation.min_length"},
	ErrContentTooLarge:    {false, "Transcript exceeds the maximum size", "Split the transcript or raise --max-bytes / validation.max_bytes"},
	ErrLikelyBinary:       {false, "Content looks like binary data rather than text", "Export the transcript as .vtt, .srt or plain text first"},
	ErrReadError:          {false, "Transcript file could not be read", "Check the path exists and is readable"},
	ErrDuplicateContent:   {false, "Identical content is already stored", "No action needed; duplicates are skipped"},
	ErrStorageError:       {true, "Database read or write failed", "Check the database: penf-transcripts db status"},
	ErrPublishError:       {true, "Event could not be published to Redis", "Check redis.addr, or set redis.enabled=false"},
	ErrServiceUnavailable: {true, "Backing service unavailable", "Check the database and Redis settings: penf-transcripts config show"},
	ErrProcessingError:    {false, "Unclassified processing error", defaultAction},
}

// Codes lists every known code in sorted order.
func Codes() []ErrorCode {
	out := make([]ErrorCode, 0, len(codes))
	for c := range codes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsRetryable reports whether a failure with code is likely transient.
func IsRetryable(code ErrorCode) bool {
	return codes[code].retryable
}

// GetSuggestedAction returns what the user can do about code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := codes[code]; ok {
		return info.action
	}
	return defaultAction
}

// GetDescription returns a one-line description of code.
func GetDescription(code ErrorCode) string {
	if info, ok := codes[code]; ok {
		return info.description
	}
	return "Unknown error"
}
