package contentid

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

var suffixPattern = regexp.MustCompile(`^[0-9a-zA-Z]{8}$`)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		gen        func() string
		wantPrefix string
	}{
		{"transcript", NewTranscript, "tr-"},
		{"job", NewJob, "jb-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.gen()

			if !strings.HasPrefix(id, tt.wantPrefix) {
				t.Errorf("id = %q, want prefix %q", id, tt.wantPrefix)
			}
			if len(id) != idLength {
				t.Errorf("len(%q) = %d, want %d", id, len(id), idLength)
			}
			if !suffixPattern.MatchString(id[3:]) {
				t.Errorf("suffix %q is not base62", id[3:])
			}
		})
	}
}

func TestNewUnknownKind(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("New with unknown kind should panic")
		}
	}()
	New("xx")
}

func TestNewUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := NewTranscript()
		if seen[id] {
			t.Fatalf("Duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestNewAt_TimestampComponent(t *testing.T) {
	at := time.UnixMicro(62*62 + 5)
	id := newAt(KindJob, at)
	if got := id[3:7]; got != "0105" {
		t.Errorf("timestamp component = %q, want 0105", got)
	}

	wrapped := newAt(KindJob, time.UnixMicro(base62Max+1))
	if got := wrapped[3:7]; got != "0001" {
		t.Errorf("wrapped timestamp component = %q, want 0001", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		wantKind Kind
		wantErr  error
	}{
		{"valid transcript", "tr-zzzzzzzz", KindTranscript, nil},
		{"valid job", "jb-AaZz09bB", KindJob, nil},
		{"too short", "tr-12345", "", ErrInvalidFormat},
		{"too long", "tr-123456789", "", ErrInvalidFormat},
		{"missing dash", "tr12345678", "", ErrInvalidFormat},
		{"unknown kind", "em-12345678", "", ErrInvalidKind},
		{"invalid chars in suffix", "tr-1234!@#$", "", ErrInvalidFormat},
		{"empty string", "", "", ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(tt.id)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Parse(%q) error = %v, want %v", tt.id, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.id, err)
			}
			if parsed.Kind != tt.wantKind {
				t.Errorf("Parse(%q).Kind = %q, want %q", tt.id, parsed.Kind, tt.wantKind)
			}
			if parsed.String() != tt.id {
				t.Errorf("Parse(%q).String() = %q", tt.id, parsed.String())
			}
			if parsed.Timestamp+parsed.Random != tt.id[3:] {
				t.Errorf("Parse(%q) parts = %q + %q", tt.id, parsed.Timestamp, parsed.Random)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			id := New(kind)
			parsed, err := Parse(id)
			if err != nil {
				t.Fatalf("Parse(New(%q)) unexpected error: %v", kind, err)
			}
			if parsed.Kind != kind {
				t.Errorf("Parse(New(%q)).Kind = %q", kind, parsed.Kind)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	id := NewTranscript()
	if !IsKind(id, KindTranscript) {
		t.Errorf("IsKind(%q, tr) = false", id)
	}
	if IsKind(id, KindJob) {
		t.Errorf("IsKind(%q, jb) = true", id)
	}
	if IsKind("garbage", KindTranscript) {
		t.Error("IsKind(garbage) = true")
	}
	if IsValid("tr-!!!!!!!!") {
		t.Error("IsValid should reject non-base62 suffix")
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range Kinds() {
		if len(k) != 2 || !k.Valid() {
			t.Errorf("kind %q should be a valid two-letter kind", k)
		}
	}
	for _, k := range []Kind{"", "xx", "TR", "transcript"} {
		if k.Valid() {
			t.Errorf("kind %q should be invalid", k)
		}
	}
}
