// Package contentid generates and validates the short identifiers given to
// stored transcripts and ingest jobs.
//
// ID Format: <kind:2>-<base62_ts:4><base62_rand:4> (11 chars total including dash)
//
// Kinds:
//   - tr = normalized transcript
//   - jb = batch ingest job
//
// The timestamp component uses microseconds since epoch modulo 62^4, so it is
// only a coarse ordering hint. The random component provides 14M+ combinations.
package contentid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"
)

// Kind is the two-letter prefix that says what an ID names.
type Kind string

const (
	KindTranscript Kind = "tr"
	KindJob        Kind = "jb"
)

const (
	idLength       = 11
	base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	base62Max      = 62 * 62 * 62 * 62
)

var (
	ErrInvalidFormat = errors.New("invalid content ID format")
	ErrInvalidKind   = errors.New("invalid content ID kind")
)

// ID is a parsed identifier.
type ID struct {
	Kind      Kind
	Timestamp string
	Random    string
	Raw       string
}

func (id ID) String() string {
	return id.Raw
}

// Kinds returns every known kind.
func Kinds() []Kind {
	return []Kind{KindTranscript, KindJob}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTranscript, KindJob:
		return true
	}
	return false
}

// New generates an ID of the given kind. It panics on an unknown kind since
// kinds are compile-time constants.
func New(kind Kind) string {
	if !kind.Valid() {
		panic(fmt.Sprintf("contentid: invalid kind: %q", kind))
	}
	return newAt(kind, time.Now())
}

// NewTranscript returns a fresh transcript ID.
func NewTranscript() string { return New(KindTranscript) }

// NewJob returns a fresh ingest job ID.
func NewJob() string { return New(KindJob) }

func newAt(kind Kind, now time.Time) string {
	ts := encodeBase62(uint64(now.UnixMicro()) % base62Max)
	return string(kind) + "-" + ts + randomBase62(4)
}

// Parse validates id and splits it into its parts.
func Parse(id string) (ID, error) {
	if len(id) != idLength {
		return ID{}, fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidFormat, idLength, len(id))
	}
	if id[2] != '-' {
		return ID{}, fmt.Errorf("%w: missing dash at position 2", ErrInvalidFormat)
	}

	kind := Kind(id[:2])
	if !kind.Valid() {
		return ID{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidKind, kind)
	}

	suffix := id[3:]
	if !isBase62(suffix) {
		return ID{}, fmt.Errorf("%w: suffix contains invalid characters", ErrInvalidFormat)
	}

	return ID{Kind: kind, Timestamp: suffix[:4], Random: suffix[4:], Raw: id}, nil
}

// IsValid reports whether id parses.
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// IsKind reports whether id parses and has the given kind.
func IsKind(id string, kind Kind) bool {
	parsed, err := Parse(id)
	return err == nil && parsed.Kind == kind
}

func encodeBase62(n uint64) string {
	result := make([]byte, 4)
	for i := 3; i >= 0; i-- {
		result[i] = base62Alphabet[n%62]
		n /= 62
	}
	return string(result)
}

// randomBase62 uses rejection sampling: bytes 248-255 would bias the modulo.
func randomBase62(length int) string {
	const maxUnbiased = 248

	result := make([]byte, 0, length)
	var buf [16]byte
	for len(result) < length {
		if _, err := rand.Read(buf[:]); err != nil {
			panic(fmt.Sprintf("contentid: reading random bytes: %v", err))
		}
		for _, b := range buf {
			if b < maxUnbiased && len(result) < length {
				result = append(result, base62Alphabet[b%62])
			}
		}
	}
	return string(result)
}

func isBase62(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}
