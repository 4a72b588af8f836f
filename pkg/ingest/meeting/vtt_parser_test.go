package meeting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseVTT(content string) []ParsedEntry {
	return ParserFor(FormatVTT).Parse(content)
}

func TestParseVTT_VoiceTags(t *testing.T) {
	entries := parseVTT("WEBVTT\n\n<v Alice>Hello there</v>\n\n<v Bob>Hi Alice</v>")

	require.Len(t, entries, 2)
	assert.Equal(t, ParsedEntry{Speaker: "Alice", Text: "Hello there"}, entries[0])
	assert.Equal(t, ParsedEntry{Speaker: "Bob", Text: "Hi Alice"}, entries[1])
	assert.Equal(t, "Alice: Hello there\nBob: Hi Alice", RenderFormat(entries, FormatVTT))
}

func TestParseVTT_TeamsExport(t *testing.T) {
	vttContent := `WEBVTT

1
00:00:01.000 --> 00:00:04.000
<v Alice Smith>First part
second part</v>

2
00:00:05.000 --> 00:00:06.000
<v Bob Jones>Reply</v>
`

	entries := parseVTT(vttContent)

	require.Len(t, entries, 2)
	assert.Equal(t, "Alice Smith", entries[0].Speaker)
	assert.Equal(t, "First part second part", entries[0].Text)
	assert.Equal(t, "Bob Jones", entries[1].Speaker)
	assert.Equal(t, "Reply", entries[1].Text)
	for _, e := range entries {
		assert.Empty(t, e.Timestamp, "VTT cue timing should be discarded")
	}
}

func TestParseVTT_SpeakerChangeWithinCue(t *testing.T) {
	entries := parseVTT("WEBVTT\n\n00:00:01.000 --> 00:00:03.000\n<v Alice>One</v>\n<v Bob>Two</v>")

	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].Speaker)
	assert.Equal(t, "One", entries[0].Text)
	assert.Equal(t, "Bob", entries[1].Speaker)
	assert.Equal(t, "Two", entries[1].Text)
}

func TestParseVTT_SeveralVoicesOnOneLine(t *testing.T) {
	tests := []struct {
		name string
		cue  string
		want []ParsedEntry
	}{
		{
			name: "two tags",
			cue:  "<v Alice>Hi</v> <v Bob>Hey</v>",
			want: []ParsedEntry{{Speaker: "Alice", Text: "Hi"}, {Speaker: "Bob", Text: "Hey"}},
		},
		{
			name: "unclosed tags",
			cue:  "<v Alice>Hi <v.loud Bob>Hey <v Carol>Yo",
			want: []ParsedEntry{{Speaker: "Alice", Text: "Hi"}, {Speaker: "Bob", Text: "Hey"}, {Speaker: "Carol", Text: "Yo"}},
		},
		{
			name: "text before the first tag",
			cue:  "<v Alice>Intro\nand so <v Bob>Right</v>",
			want: []ParsedEntry{{Speaker: "Alice", Text: "Intro and so"}, {Speaker: "Bob", Text: "Right"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := parseVTT("WEBVTT\n\n" + tt.cue)

			assert.Equal(t, tt.want, entries)
		})
	}
}

func TestNormalize_SeveralVoicesOnOneLine(t *testing.T) {
	result := Normalize("WEBVTT\n\n00:00:01.000 --> 00:00:02.000\n<v Alice>Hi</v> <v Bob>Hey</v>")

	assert.Equal(t, "Alice: Hi\nBob: Hey", result.RawText)
	assert.Equal(t, []string{"Alice", "Bob"}, result.Participants)
}

func TestParseVTT_UntaggedCueKeepsSpeaker(t *testing.T) {
	entries := parseVTT("WEBVTT\n\n<v Alice>Hello</v>\n\n00:00:03.000 --> 00:00:04.000\nstill talking")

	require.Len(t, entries, 2)
	assert.Equal(t, ParsedEntry{Speaker: "Alice", Text: "still talking"}, entries[1])
}

func TestParseVTT_SkipsMetadata(t *testing.T) {
	vttContent := `WEBVTT
Kind: captions
Language: en

NOTE This comment
spans two lines

00:00:00.000 --> 00:00:02.000 align:start position:0%
Hello world
`

	entries := parseVTT(vttContent)

	require.Len(t, entries, 1)
	assert.Equal(t, ParsedEntry{Text: "Hello world"}, entries[0])
}

func TestParseVTT_ClassedVoiceTag(t *testing.T) {
	entries := parseVTT("WEBVTT\n\n<v.loud Esme>It's a blue apple tree!</v>")

	require.Len(t, entries, 1)
	assert.Equal(t, "Esme", entries[0].Speaker)
	assert.Equal(t, "It's a blue apple tree!", entries[0].Text)
}

func TestParseVTT_WebexCueHeaders(t *testing.T) {
	vttContent := `WEBVTT

1 "" (0)
00:00:00.000 --> 00:00:05.579
Okay, that sounds good. Thanks.

2 "Alan Dickens" (1262511360)
00:00:05.579 --> 00:00:06.858
Go.

3 "Mitul Mehta" (3330436864)
00:00:06.858 --> 00:00:34.950
Alright, thanks everyone for joining today.
`

	entries := parseVTT(vttContent)

	require.Len(t, entries, 3)
	assert.Equal(t, ParsedEntry{Text: "Okay, that sounds good. Thanks."}, entries[0])
	assert.Equal(t, ParsedEntry{Speaker: "Alan Dickens", Text: "Go."}, entries[1])
	assert.Equal(t, "Mitul Mehta", entries[2].Speaker)
}

func TestParseVTT_CRLF(t *testing.T) {
	entries := parseVTT("WEBVTT\r\n\r\n<v Alice>Hi</v>\r\n\r\n<v Bob>Yo</v>\r\n")

	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].Speaker)
	assert.Equal(t, "Yo", entries[1].Text)
}

func TestParseVTT_EmptyTagProducesNoEntry(t *testing.T) {
	entries := parseVTT("WEBVTT\n\n<v Alice></v>\n\n<v Bob>Hello</v>")

	require.Len(t, entries, 1)
	assert.Equal(t, "Bob", entries[0].Speaker)
}

func TestParseVTT_Empty(t *testing.T) {
	entries := parseVTT("WEBVTT\n\n")
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
