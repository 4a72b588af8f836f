package meeting

import (
	"regexp"
	"strings"
)

// VTT parsing regular expressions
var (
	// Matches an opening voice tag: <v Alice Smith>
	// Also accepts the class form <v.loud Alice>.
	vttVoiceTagRegex = regexp.MustCompile(`<v(?:\.[^\s>]*)?\s+([^>]*)>`)

	// Matches any residual voice markup: <v Name>, <v.x Name>, </v>
	vttVoiceMarkupRegex = regexp.MustCompile(`</?v(?:[.\s][^>]*)?>`)

	// Matches Webex cue headers: 1 "Speaker Name" (123456)
	vttWebexCueHeaderRegex = regexp.MustCompile(`^\d+\s+"([^"]*)"(?:\s+\(\d+\))?$`)

	// Matches pure numeric cue identifiers
	vttCueIndexRegex = regexp.MustCompile(`^\d+$`)

	// Matches lines starting with two digits and a colon (cue timing)
	vttTimingPrefixRegex = regexp.MustCompile(`^\d{2}:`)
)

type vttParser struct{}

func (vttParser) Format() TranscriptFormat { return FormatVTT }

// Parse streams the VTT body, attributing text to the speaker named by the most
// recent voice tag. Cue timing is discarded.
func (vttParser) Parse(content string) []ParsedEntry {
	buf := &turnBuffer{}
	inNote := false

	for _, raw := range splitLines(content) {
		line := strings.TrimSpace(raw)

		if line == "" {
			inNote = false
			buf.flush()
			continue
		}

		// NOTE comment blocks run until the next blank line.
		if inNote {
			continue
		}
		if isVTTMetadata(line) {
			inNote = line == "NOTE" || strings.HasPrefix(line, "NOTE ") || strings.HasPrefix(line, "NOTE\t")
			buf.flush()
			continue
		}

		if vttCueIndexRegex.MatchString(line) ||
			strings.Contains(line, "-->") ||
			vttTimingPrefixRegex.MatchString(line) {
			continue
		}

		if matches := vttWebexCueHeaderRegex.FindStringSubmatch(line); matches != nil {
			buf.flush()
			buf.speaker = strings.TrimSpace(matches[1])
			continue
		}

		addVoiceLine(buf, line)
	}

	return buf.result()
}

// addVoiceLine buffers one cue text line. Each voice tag on the line starts a
// new turn; text before the first tag continues the current speaker.
func addVoiceLine(buf *turnBuffer, line string) {
	tags := vttVoiceTagRegex.FindAllStringSubmatchIndex(line, -1)
	if len(tags) == 0 {
		buf.add(stripVoiceMarkup(line))
		return
	}

	buf.add(stripVoiceMarkup(line[:tags[0][0]]))
	for i, tag := range tags {
		end := len(line)
		if i+1 < len(tags) {
			end = tags[i+1][0]
		}
		buf.flush()
		buf.speaker = strings.TrimSpace(line[tag[2]:tag[3]])
		buf.add(stripVoiceMarkup(line[tag[1]:end]))
	}
}

// isVTTMetadata reports header and metadata lines that carry no speech.
func isVTTMetadata(line string) bool {
	return strings.HasPrefix(line, "WEBVTT") ||
		strings.HasPrefix(line, "NOTE") ||
		strings.HasPrefix(line, "Kind:") ||
		strings.HasPrefix(line, "Language:")
}

func stripVoiceMarkup(s string) string {
	return strings.TrimSpace(vttVoiceMarkupRegex.ReplaceAllString(s, ""))
}
