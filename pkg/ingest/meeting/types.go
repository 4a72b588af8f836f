// Package meeting detects the format of raw meeting transcripts and normalizes
// them into a single "[M:SS] Speaker: text" representation.
//
// Everything in this package is a pure function over strings. Callers that read
// files, talk to a database or publish events do so around it.
package meeting

import "strings"

// TranscriptFormat identifies the dialect a transcript was written in.
type TranscriptFormat string

// Supported transcript formats.
const (
	FormatVTT       TranscriptFormat = "vtt"
	FormatSRT       TranscriptFormat = "srt"
	FormatTeamsText TranscriptFormat = "teams-text"
	FormatPlain     TranscriptFormat = "plain"
)

// AllFormats lists every format in detection priority order.
var AllFormats = []TranscriptFormat{FormatVTT, FormatSRT, FormatTeamsText, FormatPlain}

// IsValid reports whether f is one of the known formats.
func (f TranscriptFormat) IsValid() bool {
	for _, known := range AllFormats {
		if f == known {
			return true
		}
	}
	return false
}

// String returns the format label.
func (f TranscriptFormat) String() string {
	return string(f)
}

// ParsedEntry is one speech turn.
type ParsedEntry struct {
	Speaker   string `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"` // display form, e.g. "1:15"
	Text      string `json:"text" yaml:"text"`
}

// NormalizedTranscript is the output of the normalization pipeline.
type NormalizedTranscript struct {
	Entries      []ParsedEntry    `json:"entries" yaml:"entries"`
	Participants []string         `json:"participants" yaml:"participants"`
	RawText      string           `json:"raw_text" yaml:"raw_text"`
	Format       TranscriptFormat `json:"format" yaml:"format"`
}

// Summary holds simple statistics about a normalized transcript.
type Summary struct {
	Format       TranscriptFormat `json:"format" yaml:"format"`
	EntryCount   int              `json:"entry_count" yaml:"entry_count"`
	Participants int              `json:"participants" yaml:"participants"`
	WordCount    int              `json:"word_count" yaml:"word_count"`
	SpeakerTurns map[string]int   `json:"speaker_turns" yaml:"speaker_turns"`
}

// Summarize computes statistics over the entries of t.
func (t *NormalizedTranscript) Summarize() Summary {
	s := Summary{
		Format:       t.Format,
		EntryCount:   len(t.Entries),
		Participants: len(t.Participants),
		SpeakerTurns: make(map[string]int),
	}
	for _, e := range t.Entries {
		s.WordCount += len(strings.Fields(e.Text))
		if e.Speaker != "" {
			s.SpeakerTurns[e.Speaker]++
		}
	}
	return s
}
