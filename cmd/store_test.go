package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/storage"
)

func TestStoreCommands_RequireDatabase(t *testing.T) {
	tests := []struct {
		name string
		run  func(deps *CommandDeps) error
	}{
		{"show", func(deps *CommandDeps) error { return execute(NewShowCommand(deps), "some-id") }},
		{"list", func(deps *CommandDeps) error { return execute(NewListCommand(deps)) }},
		{"job", func(deps *CommandDeps) error { return execute(NewJobCommand(deps), "some-job") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := newTestDeps(t, "")
			assert.ErrorIs(t, tt.run(deps), errNoDatabase)
		})
	}
}

func TestListCommand_InvalidFormat(t *testing.T) {
	deps, _ := newTestDeps(t, "")

	err := execute(NewListCommand(deps), "--format", "pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestOutputTranscriptListText(t *testing.T) {
	items := []storage.TranscriptSummary{
		{ID: "6f1c9a52-3c4e-4f7e-9a43-1f1f6b0c2d11", Title: "Weekly sync", Format: meeting.FormatVTT, EntryCount: 2, Participants: []string{"Alice", "Bob"}},
		{ID: "0b8e2f4c-8c57-4b8e-a3c2-5d3a1c9e7f00", SourcePath: "/tmp/notes.txt", Format: meeting.FormatPlain, EntryCount: 1},
	}
	var buf bytes.Buffer

	outputTranscriptListText(&buf, newStyles(false), items)

	got := buf.String()
	assert.Contains(t, got, "Weekly sync")
	assert.Contains(t, got, "Alice, Bob")
	assert.Contains(t, got, "/tmp/notes.txt")
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestOutputTranscriptListText_Empty(t *testing.T) {
	var buf bytes.Buffer

	outputTranscriptListText(&buf, newStyles(false), nil)

	assert.Equal(t, "No transcripts stored.\n", buf.String())
}

func TestOutputJobText(t *testing.T) {
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	out := jobOutput{
		IngestJob: storage.IngestJob{ID: "job-1", Source: "zoom", Status: storage.IngestJobStatusCompletedErrors, TotalFiles: 3, Imported: 1, Skipped: 1, Failed: 1, StartedAt: started},
		Errors:    []storage.IngestError{{FilePath: "/in/short.txt", Code: "CONTENT_TOO_SHORT", Message: "too short"}},
	}
	var buf bytes.Buffer

	outputJobText(&buf, newStyles(false), out)

	got := buf.String()
	assert.Contains(t, got, "Job: job-1")
	assert.Contains(t, got, "Status: completed_with_errors")
	assert.Contains(t, got, "3 total, 1 imported, 1 skipped, 1 failed")
	assert.Contains(t, got, "Errors (1)")
	assert.Contains(t, got, "/in/short.txt")
}
