package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-transcripts/pkg/db"
)

func TestNewDbCommand(t *testing.T) {
	cmd := NewDbCommand(nil)
	require.NotNil(t, cmd)

	assert.Equal(t, "db", cmd.Use)
	assert.Contains(t, cmd.Aliases, "migrations")

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	assert.True(t, subcommands["migrate"], "db command should have 'migrate' subcommand")
	assert.True(t, subcommands["status"], "db command should have 'status' subcommand")
}

func TestDbCommands_RequireDatabase(t *testing.T) {
	for _, sub := range []string{"migrate", "status"} {
		t.Run(sub, func(t *testing.T) {
			deps, _ := newTestDeps(t, "")

			err := execute(NewDbCommand(deps), sub)

			assert.ErrorIs(t, err, errNoDatabase)
		})
	}
}

func TestOutputMigrationStatusText(t *testing.T) {
	applied := time.Date(2026, 3, 2, 9, 30, 0, 0, time.Local)
	status := &db.MigrationStatus{
		Applied: []db.MigrationStatusEntry{{Version: "001", Name: "transcripts", AppliedAt: &applied}},
		Pending: []db.MigrationStatusEntry{{Version: "002", Name: "ingest_jobs"}},
		Drift:   []db.MigrationStatusEntry{{Version: "099", Name: "old_table", AppliedAt: &applied}},
	}
	var buf bytes.Buffer

	outputMigrationStatusText(&buf, newStyles(false), status)

	got := buf.String()
	assert.Contains(t, got, "Applied Migrations (1):")
	assert.Contains(t, got, "2026-03-02 09:30:00")
	assert.Contains(t, got, "Pending Migrations (1):")
	assert.Contains(t, got, "Drift - applied but unknown to this binary (1):")
	assert.True(t, strings.HasSuffix(got, "Summary: 1 applied, 1 pending, 1 drift\n"), "got %q", got)
}

func TestOutputMigrationStatusText_Empty(t *testing.T) {
	var buf bytes.Buffer

	outputMigrationStatusText(&buf, newStyles(false), &db.MigrationStatus{})

	assert.Equal(t, "No migrations found.\n", buf.String())
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := confirm(strings.NewReader(tt.input), &out, "Apply? ")
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "Apply? ", out.String())
	}
}
