package meeting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/otherjamesbrown/penf-transcripts/pkg/errors"
)

func TestValidate_MinLengthBoundary(t *testing.T) {
	opts := ValidationOptions{MinLength: 50}

	atMinimum := Validate(strings.Repeat("a", 50), opts)
	assert.True(t, atMinimum.Valid)
	assert.Equal(t, ValidationOK, atMinimum.Code)
	assert.Empty(t, atMinimum.Message)

	oneShort := Validate(strings.Repeat("a", 49), opts)
	assert.False(t, oneShort.Valid)
	assert.Equal(t, ValidationTooShort, oneShort.Code)
	assert.Contains(t, oneShort.Message, "minimum is 50")
}

func TestValidate_CallerSuppliedMinimum(t *testing.T) {
	content := strings.Repeat("x", 75)
	assert.True(t, Validate(content, ValidationOptions{MinLength: 50}).Valid)
	assert.Equal(t, ValidationTooShort, Validate(content, ValidationOptions{MinLength: 100}).Code)
}

func TestValidate_LengthIsMeasuredAfterTrim(t *testing.T) {
	padded := "\n\n   " + strings.Repeat("a", 49) + "   \n"
	assert.Equal(t, ValidationTooShort, Validate(padded, ValidationOptions{MinLength: 50}).Code)
}

func TestValidate_LengthCountsCharacters(t *testing.T) {
	// 50 two-byte runes: valid length, but mostly non-ASCII.
	content := strings.Repeat("é", 50)
	result := Validate(content, ValidationOptions{MinLength: 50, MaxNonPrintableRatio: 1})
	assert.True(t, result.Valid)
}

func TestValidate_EmptyAndBlank(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    ValidationCode
	}{
		{name: "missing", content: "", want: ValidationInvalidInput},
		{name: "spaces", content: "   ", want: ValidationTooShort},
		{name: "mixed whitespace", content: "\n\t\r\n", want: ValidationTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.content, DefaultValidationOptions())

			assert.False(t, result.Valid)
			assert.Equal(t, tt.want, result.Code)
		})
	}
}

func TestValidate_BlankReportsZeroLength(t *testing.T) {
	result := Validate(" \t\n ", DefaultValidationOptions())

	assert.Equal(t, "transcript is too short: 0 characters, minimum is 50", result.Message)
}

func TestValidate_TooLarge(t *testing.T) {
	opts := ValidationOptions{MinLength: 10, MaxBytes: 100}

	assert.True(t, Validate(strings.Repeat("a", 100), opts).Valid)

	result := Validate(strings.Repeat("a", 101), opts)
	assert.False(t, result.Valid)
	assert.Equal(t, ValidationTooLarge, result.Code)
}

func TestValidate_LikelyBinary(t *testing.T) {
	opts := ValidationOptions{MinLength: 10}

	// 20% NUL bytes
	result := Validate(strings.Repeat("abcd\x00", 20), opts)
	assert.False(t, result.Valid)
	assert.Equal(t, ValidationLikelyBinary, result.Code)

	// exactly 10% is tolerated
	assert.True(t, Validate(strings.Repeat("abcdefghi\x01", 10), opts).Valid)

	// invalid UTF-8 counts against the content
	assert.Equal(t, ValidationLikelyBinary, Validate(strings.Repeat("ab\xff\xfe", 10), opts).Code)
}

func TestValidate_WhitespaceIsText(t *testing.T) {
	content := strings.Repeat("Alice:\tHello there.\r\n", 10)
	assert.True(t, Validate(content, DefaultValidationOptions()).Valid)
}

func TestValidate_ZeroOptionsUseDefaults(t *testing.T) {
	assert.Equal(t, ValidationTooShort, Validate(strings.Repeat("a", DefaultMinLength-1), ValidationOptions{}).Code)
	assert.True(t, Validate(strings.Repeat("a", DefaultMinLength), ValidationOptions{}).Valid)
}

func TestValidationResult_Err(t *testing.T) {
	assert.NoError(t, ValidationResult{Valid: true}.Err())

	tests := []struct {
		code ValidationCode
		want pferrors.ErrorCode
	}{
		{ValidationInvalidInput, pferrors.ErrInvalidInput},
		{ValidationTooShort, pferrors.ErrContentTooShort},
		{ValidationTooLarge, pferrors.ErrContentTooLarge},
		{ValidationLikelyBinary, pferrors.ErrLikelyBinary},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := ValidationResult{Code: tt.code, Message: "rejected"}.Err()
			require.Error(t, err)
			assert.Equal(t, tt.want, pferrors.CodeOf(err))
			assert.True(t, pferrors.IsValidation(err))
			assert.Contains(t, err.Error(), "validate: rejected")
		})
	}
}
