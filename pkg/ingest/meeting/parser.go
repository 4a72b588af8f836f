package meeting

import "strings"

// Parser converts raw transcript content of one format into speech turns.
// Implementations never fail: malformed lines are dropped or treated as text.
type Parser interface {
	Format() TranscriptFormat
	Parse(content string) []ParsedEntry
}

var parsers = map[TranscriptFormat]Parser{
	FormatVTT:       vttParser{},
	FormatSRT:       srtParser{},
	FormatTeamsText: teamsParser{},
	FormatPlain:     plainParser{},
}

// ParserFor returns the parser registered for format. Unknown formats get the
// plain parser.
func ParserFor(format TranscriptFormat) Parser {
	if p, ok := parsers[format]; ok {
		return p
	}
	return plainParser{}
}

// Parse detects the format of content and parses it.
func Parse(content string) (TranscriptFormat, []ParsedEntry) {
	format := Detect(content)
	return format, ParserFor(format).Parse(content)
}

// turnBuffer accumulates continuation lines for the current speaker.
type turnBuffer struct {
	entries   []ParsedEntry
	words     []string
	speaker   string
	timestamp string
}

func (b *turnBuffer) add(text string) {
	if text = strings.TrimSpace(text); text != "" {
		b.words = append(b.words, text)
	}
}

// flush emits the buffered text as one entry. Empty buffers emit nothing.
func (b *turnBuffer) flush() {
	if len(b.words) == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(b.words, " "))
	b.words = b.words[:0]
	if text == "" {
		return
	}
	b.entries = append(b.entries, ParsedEntry{
		Speaker:   b.speaker,
		Timestamp: b.timestamp,
		Text:      text,
	})
}

func (b *turnBuffer) result() []ParsedEntry {
	b.flush()
	if b.entries == nil {
		return []ParsedEntry{}
	}
	return b.entries
}

// splitLines normalizes line endings and splits content into lines.
func splitLines(content string) []string {
	return strings.Split(normalizeNewlines(content), "\n")
}
