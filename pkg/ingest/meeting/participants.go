package meeting

import (
	"regexp"
	"sort"
	"strings"
)

// Matches "Alice Smith:" or "[1:15] Alice Smith:" at the start of a line.
var participantLineRegex = regexp.MustCompile(`(?m)^(?:\[[^\]\n]*\][ \t]*)?(` +
	teamsNameToken + `(?:[ \t]+` + teamsNameToken + `)*):`)

// participantDenylist holds capitalized words that look like speakers but are
// section headers.
var participantDenylist = map[string]bool{
	"note":    true,
	"warning": true,
	"error":   true,
	"info":    true,
	"todo":    true,
	"webvtt":  true,
}

// ExtractParticipants returns the distinct speaker names found at the start of
// lines in normalized text, sorted ascending. The result is never nil.
func ExtractParticipants(normalizedText string) []string {
	seen := make(map[string]bool)
	names := []string{}

	for _, m := range participantLineRegex.FindAllStringSubmatch(normalizeNewlines(normalizedText), -1) {
		name := m[1]
		if seen[name] || participantDenylist[strings.ToLower(name)] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
