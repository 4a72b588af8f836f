package meeting

import "strings"

// Entry separators.
const (
	LineSeparator      = "\n"
	ParagraphSeparator = "\n\n"
)

// SeparatorFor returns the separator used between rendered entries of format.
// Teams transcripts render one paragraph per turn; everything else one line.
func SeparatorFor(format TranscriptFormat) string {
	if format == FormatTeamsText {
		return ParagraphSeparator
	}
	return LineSeparator
}

// Render writes entries as "[M:SS] Speaker: text" joined by separator.
// Entries with empty text are skipped.
func Render(entries []ParsedEntry, separator string) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if line := RenderEntry(e); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, separator)
}

// RenderFormat renders entries with the separator for format.
func RenderFormat(entries []ParsedEntry, format TranscriptFormat) string {
	return Render(entries, SeparatorFor(format))
}

// RenderEntry renders one entry, or "" if it has no text.
func RenderEntry(e ParsedEntry) string {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return ""
	}
	parts := make([]string, 0, 3)
	if e.Timestamp != "" {
		parts = append(parts, "["+e.Timestamp+"]")
	}
	if e.Speaker != "" {
		parts = append(parts, e.Speaker+":")
	}
	parts = append(parts, text)
	return strings.Join(parts, " ")
}
