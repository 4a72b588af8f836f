package meeting

import (
	"regexp"
	"strings"
)

// Three or more consecutive newlines collapse to one blank line.
var excessBlankLinesRegex = regexp.MustCompile(`\n{3,}`)

type plainParser struct{}

func (plainParser) Format() TranscriptFormat { return FormatPlain }

// Parse returns the whitespace-cleaned content as a single entry.
func (plainParser) Parse(content string) []ParsedEntry {
	text := CleanText(content)
	if text == "" {
		return []ParsedEntry{}
	}
	return []ParsedEntry{{Text: text}}
}

// CleanText normalizes line endings, strips trailing whitespace from every line,
// collapses runs of blank lines and trims the result. It is idempotent.
func CleanText(content string) string {
	lines := splitLines(content)
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\f\v")
	}
	joined := excessBlankLinesRegex.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(joined)
}
