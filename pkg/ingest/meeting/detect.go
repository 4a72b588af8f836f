package meeting

import (
	"regexp"
	"strings"
)

// Format detection signatures
var (
	// Line beginning with a zero-hour cue timing: 00:00:01.000 --> ...
	vttZeroHourLineRegex = regexp.MustCompile(`(?m)^00:.*`)

	// SRT cue: numeric index line followed by 00:00:01,000 --> 00:00:02,000
	srtCueRegex = regexp.MustCompile(`(?m)^\d+[ \t]*\n\d{2}:\d{2}:\d{2},\d{3}[ \t]+-->[ \t]+\d{2}:\d{2}:\d{2},\d{3}`)

	// SRT timing line on its own
	srtTimingRegex = regexp.MustCompile(`^\d{2}:\d{2}:\d{2},\d{3}[ \t]+-->[ \t]+\d{2}:\d{2}:\d{2},\d{3}`)

	teamsDisclaimerRegex = regexp.MustCompile(`(?i)AI-generated content may be incorrect`)
	teamsStartedRegex    = regexp.MustCompile(`(?i)started transcription`)
	teamsDurationRegex   = regexp.MustCompile(`(?i)\d+\s+minutes?\s+\d+\s+seconds?`)
)

const vttArrow = " --> "

// detectRule is one entry in the ordered detection table.
type detectRule struct {
	format  TranscriptFormat
	name    string
	matches func(content string) bool
}

// detectRules are evaluated in order; the first match wins.
var detectRules = []detectRule{
	{FormatVTT, "webvtt-header", hasVTTHeader},
	{FormatVTT, "vtt-cue-timing", hasVTTCueTiming},
	{FormatSRT, "srt-cue", srtCueRegex.MatchString},
	{FormatTeamsText, "teams-disclaimer", teamsDisclaimerRegex.MatchString},
	{FormatTeamsText, "teams-started-transcription", teamsStartedRegex.MatchString},
	{FormatTeamsText, "teams-duration", teamsDurationRegex.MatchString},
}

// Detect classifies content into exactly one TranscriptFormat. It never fails;
// content with no recognizable signature is FormatPlain.
func Detect(content string) TranscriptFormat {
	format, _ := DetectWithRule(content)
	return format
}

// DetectWithRule is Detect that also reports the name of the rule that matched,
// or "fallback" for plain text.
func DetectWithRule(content string) (TranscriptFormat, string) {
	content = normalizeNewlines(content)
	for _, rule := range detectRules {
		if rule.matches(content) {
			return rule.format, rule.name
		}
	}
	return FormatPlain, "fallback"
}

func hasVTTHeader(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "WEBVTT")
}

// hasVTTCueTiming reports a header-less VTT body: a line beginning "00:" and an
// arrow separator. Comma-millisecond timing lines belong to SRT and do not count.
func hasVTTCueTiming(content string) bool {
	if !strings.Contains(content, vttArrow) {
		return false
	}
	for _, line := range vttZeroHourLineRegex.FindAllString(content, -1) {
		if !srtTimingRegex.MatchString(line) {
			return true
		}
	}
	return false
}

// normalizeNewlines converts CRLF and lone CR line endings to LF.
func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
