package meeting

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Teams-text parsing regular expressions
var (
	// Lines dropped before parsing: disclaimers and transcription markers
	teamsNoiseRegex = regexp.MustCompile(`(?i)AI-generated content may be incorrect|(?:started|stopped) transcription`)

	// Standalone short timestamp: 1:15 or 12:05
	teamsShortTimestampRegex = regexp.MustCompile(`^(\d{1,2}:\d{2})$`)

	// Standalone long-form timestamp: 2 minutes 15 seconds, 1 hour 2 minutes 3 seconds, 45 seconds
	teamsLongTimestampRegex = regexp.MustCompile(`(?i)^` + teamsLongForm + `$`)

	// Speaker line: Title-Case tokens, optionally followed by an inline timestamp
	teamsSpeakerRegex = regexp.MustCompile(`^(` + teamsNameToken + `(?:[ \t]+` + teamsNameToken + `)*)` +
		`(?:[ \t]+(\d{1,2}:\d{2}|(?i:` + teamsLongForm + `)))?$`)
)

const (
	teamsNameToken = `\p{Lu}[\p{L}\p{M}]*(?:['’-][\p{L}\p{M}]+)*`
	teamsLongForm  = `(?:(\d+)\s+hours?\s+)?(?:(\d+)\s+minutes?\s+)?(\d+)\s+seconds?`
)

// teamsState is the mutable state threaded through the Teams rule list.
type teamsState struct {
	buf *turnBuffer
}

// teamsRule handles a line and reports whether it consumed it.
type teamsRule struct {
	name  string
	apply func(st *teamsState, line string) bool
}

// teamsRules are tried in order for every non-empty line; the first rule that
// returns true wins.
var teamsRules = []teamsRule{
	{"short-timestamp", applyShortTimestamp},
	{"long-timestamp", applyLongTimestamp},
	{"speaker", applySpeaker},
	{"duplicate-speaker", applyDuplicateSpeaker},
	{"content", applyContent},
}

type teamsParser struct{}

func (teamsParser) Format() TranscriptFormat { return FormatTeamsText }

// Parse walks a copy/pasted Teams transcript. Timestamps stick to every
// following entry until a newer one is seen.
func (teamsParser) Parse(content string) []ParsedEntry {
	st := &teamsState{buf: &turnBuffer{}}

	for _, raw := range splitLines(content) {
		line := strings.TrimSpace(raw)
		if line == "" || teamsNoiseRegex.MatchString(line) {
			continue
		}
		for _, rule := range teamsRules {
			if rule.apply(st, line) {
				break
			}
		}
	}

	return st.buf.result()
}

func applyShortTimestamp(st *teamsState, line string) bool {
	if !teamsShortTimestampRegex.MatchString(line) {
		return false
	}
	st.buf.timestamp = line
	return true
}

func applyLongTimestamp(st *teamsState, line string) bool {
	m := teamsLongTimestampRegex.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	st.buf.timestamp = longFormToDisplay(m[1], m[2], m[3])
	return true
}

func applySpeaker(st *teamsState, line string) bool {
	m := teamsSpeakerRegex.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	st.buf.flush()
	st.buf.speaker = m[1]
	switch {
	case m[2] == "":
	case teamsShortTimestampRegex.MatchString(m[2]):
		st.buf.timestamp = m[2]
	default:
		st.buf.timestamp = longFormToDisplay(m[3], m[4], m[5])
	}
	return true
}

// applyDuplicateSpeaker drops the "Name 0:42" echo lines Teams repeats under a
// speaker heading.
func applyDuplicateSpeaker(st *teamsState, line string) bool {
	speaker := st.buf.speaker
	if speaker == "" || !strings.HasPrefix(line, speaker) {
		return false
	}
	rest := strings.TrimLeft(line[len(speaker):], " \t")
	return rest != "" && rest[0] >= '0' && rest[0] <= '9'
}

func applyContent(st *teamsState, line string) bool {
	st.buf.add(line)
	return true
}

// longFormToDisplay renders hour/minute/second captures as M:SS. Hours fold
// into minutes.
func longFormToDisplay(hours, minutes, seconds string) string {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	return FormatTimestamp(h*3600 + m*60 + s)
}

// FormatTimestamp renders a duration in seconds as M:SS.
func FormatTimestamp(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%d:%02d", totalSeconds/60, totalSeconds%60)
}
