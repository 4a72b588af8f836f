package meeting

import (
	"regexp"
	"strings"
)

// Cue blocks are separated by one or more blank lines, which may hold spaces or tabs.
var srtBlockSeparatorRegex = regexp.MustCompile(`\n(?:[ \t]*\n)+`)

// srtMinBlockLines is the smallest block (index, timing, text) that yields an
// entry. Shorter blocks are dropped without recovery.
const srtMinBlockLines = 3

type srtParser struct{}

func (srtParser) Format() TranscriptFormat { return FormatSRT }

// Parse splits content into cue blocks and keeps the text lines of each.
// SRT cues carry no speaker and their timing is discarded.
func (srtParser) Parse(content string) []ParsedEntry {
	entries := []ParsedEntry{}
	body := strings.TrimSpace(normalizeNewlines(content))

	for _, block := range srtBlockSeparatorRegex.Split(body, -1) {
		lines := strings.Split(block, "\n")
		if len(lines) < srtMinBlockLines {
			continue
		}

		parts := make([]string, 0, len(lines)-2)
		for _, line := range lines[2:] {
			if line = strings.TrimSpace(line); line != "" {
				parts = append(parts, line)
			}
		}
		if text := strings.Join(parts, " "); text != "" {
			entries = append(entries, ParsedEntry{Text: text})
		}
	}

	return entries
}
