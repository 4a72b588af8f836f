package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/storage"
)

// Stored transcript command flags.
var (
	listFormat string
	listLimit  int
	listOffset int
	showText   bool
)

// NewShowCommand creates the 'show' command.
func NewShowCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "show <transcript-id>",
		Short: "Show a stored transcript",
		Long: `Show a transcript previously stored by 'normalize --persist', 'ingest' or
'watch'.

Examples:
  penf-transcripts show 6f1c9a52-3c4e-4f7e-9a43-1f1f6b0c2d11
  penf-transcripts show 6f1c9a52-3c4e-4f7e-9a43-1f1f6b0c2d11 --text-only
  penf-transcripts show 6f1c9a52-3c4e-4f7e-9a43-1f1f6b0c2d11 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			backend, err := requireStore(deps)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, cancel := commandContext(cmd, cfg)
			defer cancel()

			t, err := newService(deps, cfg, backend).Get(ctx, args[0])
			if err != nil {
				return err
			}

			if showText {
				_, err := fmt.Fprintln(deps.Out, t.RawText)
				return err
			}

			return writeOutput(deps.Out, cfg.OutputFormat, t, func(w io.Writer) error {
				st := newStyles(deps.StdoutIsTerminal())
				outputTranscriptHeader(w, st, t)
				printf(w, "\n%s\n", st.transcript(&meeting.NormalizedTranscript{
					Entries:      t.Entries,
					Participants: t.Participants,
					RawText:      t.RawText,
					Format:       t.Format,
				}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showText, "text-only", false, "Print only the flat normalized text")

	return cmd
}

func outputTranscriptHeader(w io.Writer, st *styles, t *storage.Transcript) {
	title := t.Title
	if title == "" {
		title = "(untitled)"
	}
	printf(w, "%s\n", st.render(st.header, title))
	printf(w, "%s %s\n", st.render(st.label, "ID:"), t.ID)
	if t.SourcePath != "" {
		printf(w, "%s %s\n", st.render(st.label, "Source:"), t.SourcePath)
	}
	if t.MeetingDate != nil {
		printf(w, "%s %s\n", st.render(st.label, "Date:"), t.MeetingDate.Format("2006-01-02"))
	}
	printf(w, "%s %s (%s)\n", st.render(st.label, "Format:"), t.Format, t.Encoding)
	printf(w, "%s %d entries, %d words\n", st.render(st.label, "Size:"), t.EntryCount, t.WordCount)
	printf(w, "%s %s\n", st.render(st.label, "Participants:"), joinOrDash(t.Participants))
	printf(w, "%s %s\n", st.render(st.label, "Stored:"), t.CreatedAt.Local().Format("2006-01-02 15:04"))
}

// NewListCommand creates the 'list' command.
func NewListCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transcripts",
		Long: `List stored transcripts, newest first.

Examples:
  penf-transcripts list
  penf-transcripts list --format vtt --limit 10
  penf-transcripts list -o json`,
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			format, err := parseFormatFlag(listFormat)
			if err != nil {
				return err
			}
			backend, err := requireStore(deps)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, cancel := commandContext(cmd, cfg)
			defer cancel()

			items, err := newService(deps, cfg, backend).List(ctx, storage.ListOptions{
				Format: format,
				Limit:  listLimit,
				Offset: listOffset,
			})
			if err != nil {
				return err
			}

			return writeOutput(deps.Out, cfg.OutputFormat, items, func(w io.Writer) error {
				outputTranscriptListText(w, newStyles(deps.StdoutIsTerminal()), items)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&listFormat, "format", "", "Only list transcripts of this format")
	cmd.Flags().IntVarP(&listLimit, "limit", "l", storage.DefaultListLimit, "Maximum number of transcripts")
	cmd.Flags().IntVar(&listOffset, "offset", 0, "Number of transcripts to skip")

	return cmd
}

func outputTranscriptListText(w io.Writer, st *styles, items []storage.TranscriptSummary) {
	if len(items) == 0 {
		printf(w, "No transcripts stored.\n")
		return
	}
	printf(w, "%s\n", st.render(st.header, fmt.Sprintf("%-36s  %-10s  %7s  %-30s  %s", "ID", "FORMAT", "ENTRIES", "TITLE", "PARTICIPANTS")))
	for _, t := range items {
		title := t.Title
		if title == "" {
			title = t.SourcePath
		}
		printf(w, "%-36s  %-10s  %7d  %-30s  %s\n",
			t.ID, t.Format, t.EntryCount, truncate(title, 30), truncate(joinOrDash(t.Participants), 40))
	}
}

// NewJobCommand creates the 'job' command.
func NewJobCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show the state of an ingest job",
		Long: `Show the counters and per-file errors of a batch ingest job.

Examples:
  penf-transcripts job 0b8e2f4c-8c57-4b8e-a3c2-5d3a1c9e7f00
  penf-transcripts job 0b8e2f4c-8c57-4b8e-a3c2-5d3a1c9e7f00 -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			backend, err := requireStore(deps)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, cancel := commandContext(cmd, cfg)
			defer cancel()

			job, err := backend.Repo.GetJob(ctx, args[0])
			if err != nil {
				return err
			}
			jobErrors, err := backend.Repo.GetJobErrors(ctx, args[0])
			if err != nil {
				return err
			}

			out := jobOutput{IngestJob: *job, Errors: jobErrors}
			return writeOutput(deps.Out, cfg.OutputFormat, out, func(w io.Writer) error {
				outputJobText(w, newStyles(deps.StdoutIsTerminal()), out)
				return nil
			})
		},
	}
}

// jobOutput is the structured result of 'job'.
type jobOutput struct {
	storage.IngestJob `yaml:",inline"`
	Errors            []storage.IngestError `json:"errors" yaml:"errors"`
}

func outputJobText(w io.Writer, st *styles, out jobOutput) {
	job := out.IngestJob
	printf(w, "%s %s\n", st.render(st.label, "Job:"), job.ID)
	if job.Source != "" {
		printf(w, "%s %s\n", st.render(st.label, "Source:"), job.Source)
	}
	printf(w, "%s %s\n", st.render(st.label, "Status:"), job.Status)
	printf(w, "%s %d total, %d imported, %d skipped, %d failed\n",
		st.render(st.label, "Files:"), job.TotalFiles, job.Imported, job.Skipped, job.Failed)
	printf(w, "%s %s\n", st.render(st.label, "Started:"), job.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if job.CompletedAt != nil {
		printf(w, "%s %s\n", st.render(st.label, "Completed:"), job.CompletedAt.Local().Format("2006-01-02 15:04:05"))
	}

	if len(out.Errors) == 0 {
		return
	}
	printf(w, "\n%s\n", st.render(st.header, fmt.Sprintf("Errors (%d)", len(out.Errors))))
	for _, e := range out.Errors {
		printf(w, "  %s  %-18s %s\n", truncate(e.FilePath, 48), e.Code, e.Message)
	}
}
