package meeting

import (
	"fmt"
	"strings"
	"unicode/utf8"

	pferrors "github.com/otherjamesbrown/penf-transcripts/pkg/errors"
)

// Validation defaults.
const (
	DefaultMinLength            = 50
	DefaultMaxBytes             = 10 << 20 // 10 MiB
	DefaultMaxNonPrintableRatio = 0.10
)

// ValidationCode classifies a validation failure.
type ValidationCode string

const (
	ValidationOK           ValidationCode = ""
	ValidationInvalidInput ValidationCode = "invalid_input"
	ValidationTooShort     ValidationCode = "too_short"
	ValidationTooLarge     ValidationCode = "too_large"
	ValidationLikelyBinary ValidationCode = "likely_binary"
)

// ValidationOptions holds caller-supplied validation thresholds.
type ValidationOptions struct {
	// MinLength is the minimum trimmed length in characters.
	MinLength int `json:"min_length" yaml:"min_length"`
	// MaxBytes is the maximum trimmed size in bytes.
	MaxBytes int `json:"max_bytes" yaml:"max_bytes"`
	// MaxNonPrintableRatio is the largest tolerated share of characters outside
	// printable ASCII and whitespace.
	MaxNonPrintableRatio float64 `json:"max_non_printable_ratio" yaml:"max_non_printable_ratio"`
}

// DefaultValidationOptions returns the default thresholds.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MinLength:            DefaultMinLength,
		MaxBytes:             DefaultMaxBytes,
		MaxNonPrintableRatio: DefaultMaxNonPrintableRatio,
	}
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid   bool           `json:"valid" yaml:"valid"`
	Code    ValidationCode `json:"code,omitempty" yaml:"code,omitempty"`
	Message string         `json:"error,omitempty" yaml:"error,omitempty"`
}

var validationErrorCodes = map[ValidationCode]pferrors.ErrorCode{
	ValidationInvalidInput: pferrors.ErrInvalidInput,
	ValidationTooShort:     pferrors.ErrContentTooShort,
	ValidationTooLarge:     pferrors.ErrContentTooLarge,
	ValidationLikelyBinary: pferrors.ErrLikelyBinary,
}

// Err converts a failed result into a *errors.PipelineError wrapping
// errors.ErrValidation. It returns nil for a valid result.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	code, ok := validationErrorCodes[r.Code]
	if !ok {
		code = pferrors.ErrInvalidInput
	}
	return &pferrors.PipelineError{
		Code:    code,
		Stage:   "validate",
		Message: r.Message,
		Cause:   pferrors.ErrValidation,
	}
}

// Validate checks that content looks like a transcript worth parsing.
// Zero-valued options fall back to the defaults.
func Validate(content string, opts ValidationOptions) ValidationResult {
	opts = opts.withDefaults()

	if content == "" {
		return invalid(ValidationInvalidInput, "transcript content is missing")
	}

	trimmed := strings.TrimSpace(content)

	if length := utf8.RuneCountInString(trimmed); length < opts.MinLength {
		return invalid(ValidationTooShort,
			fmt.Sprintf("transcript is too short: %d characters, minimum is %d", length, opts.MinLength))
	}

	if len(trimmed) > opts.MaxBytes {
		return invalid(ValidationTooLarge,
			fmt.Sprintf("transcript is too large: %d bytes, maximum is %d", len(trimmed), opts.MaxBytes))
	}

	if ratio := nonPrintableRatio(trimmed); ratio > opts.MaxNonPrintableRatio {
		return invalid(ValidationLikelyBinary,
			fmt.Sprintf("content appears to be binary: %.0f%% non-text characters", ratio*100))
	}

	return ValidationResult{Valid: true}
}

func (o ValidationOptions) withDefaults() ValidationOptions {
	if o.MinLength <= 0 {
		o.MinLength = DefaultMinLength
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.MaxNonPrintableRatio <= 0 {
		o.MaxNonPrintableRatio = DefaultMaxNonPrintableRatio
	}
	return o
}

func invalid(code ValidationCode, msg string) ValidationResult {
	return ValidationResult{Valid: false, Code: code, Message: msg}
}

// nonPrintableRatio returns the share of runes outside printable ASCII plus
// tab, newline and carriage return. Invalid UTF-8 bytes count as non-printable.
func nonPrintableRatio(s string) float64 {
	total, bad := 0, 0
	for _, r := range s {
		total++
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if r < 0x20 || r > 0x7e {
			bad++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(bad) / float64(total)
}
