package cmd

import (
	"hash/fnv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
)

// speakerColors cycles per speaker so turns are easy to follow.
var speakerColors = []lipgloss.Color{"39", "208", "170", "42", "214", "81", "203", "141"}

// styles renders text output. A plain styles value emits exactly the
// normalized text with no escape codes.
type styles struct {
	enabled   bool
	timestamp lipgloss.Style
	header    lipgloss.Style
	label     lipgloss.Style
	muted     lipgloss.Style
	ok        lipgloss.Style
	warn      lipgloss.Style
	fail      lipgloss.Style
	speakers  []lipgloss.Style
}

func newStyles(enabled bool) *styles {
	s := &styles{
		enabled:   enabled,
		timestamp: lipgloss.NewStyle().Faint(true),
		header:    lipgloss.NewStyle().Bold(true).Underline(true),
		label:     lipgloss.NewStyle().Bold(true),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		ok:        lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		fail:      lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
	for _, c := range speakerColors {
		s.speakers = append(s.speakers, lipgloss.NewStyle().Bold(true).Foreground(c))
	}
	return s
}

func (s *styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

// speaker renders name+suffix in the color assigned to name.
func (s *styles) speaker(name, suffix string) string {
	if !s.enabled {
		return name + suffix
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return s.speakers[h.Sum32()%uint32(len(s.speakers))].Render(name + suffix)
}

// entry renders one turn in the canonical "[M:SS] Speaker: text" layout.
func (s *styles) entry(e meeting.ParsedEntry) string {
	text := strings.TrimSpace(e.Text)
	if !s.enabled || text == "" {
		return meeting.RenderEntry(e)
	}
	var parts []string
	if e.Timestamp != "" {
		parts = append(parts, s.render(s.timestamp, "["+e.Timestamp+"]"))
	}
	if e.Speaker != "" {
		parts = append(parts, s.speaker(e.Speaker, ":"))
	}
	parts = append(parts, text)
	return strings.Join(parts, " ")
}

// transcript renders every entry with the separator of its format.
func (s *styles) transcript(t *meeting.NormalizedTranscript) string {
	if !s.enabled {
		return t.RawText
	}
	lines := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		if line := s.entry(e); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, meeting.SeparatorFor(t.Format))
}
