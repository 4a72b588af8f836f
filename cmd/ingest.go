package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/batch"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/storage"
)

// Ingest command flags.
var (
	ingestDryRun      bool
	ingestConcurrency int
	ingestSource      string
)

// NewIngestCommand creates the 'ingest' command.
func NewIngestCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Normalize and store every transcript under a path",
		Long: `Normalize every transcript file (.vtt, .srt, .txt) at a path and store the
results as one ingest job.

A directory is walked recursively; hidden files and editor temp files are
skipped. Files whose content is already stored are counted as skipped.
Rejected or unparseable files are recorded against the job and the run
continues.

With --dry-run, files are normalized and counted but nothing is stored, so no
database is needed.

Examples:
  penf-transcripts ingest ~/Downloads/meetings
  penf-transcripts ingest standup.vtt --source zoom
  penf-transcripts ingest ./exports --dry-run -o json
  penf-transcripts ingest ./exports --concurrency 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, deps, args[0])
		},
	}

	cmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Normalize without storing anything")
	cmd.Flags().IntVarP(&ingestConcurrency, "concurrency", "c", batch.DefaultConcurrency, "Number of files processed in parallel")
	cmd.Flags().StringVar(&ingestSource, "source", "", "Source tag recorded on the job (e.g. zoom, teams)")

	return cmd
}

func runIngest(cmd *cobra.Command, deps *CommandDeps, path string) error {
	cfg, err := deps.config()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	var backend *Backend
	if !ingestDryRun {
		backend, err = requireStore(deps)
		if err != nil {
			return err
		}
		defer backend.Close()
	}

	var jobs batch.JobStore
	if backend != nil && backend.Repo != nil {
		jobs = backend.Repo
	}

	// The job runs under the command context only; the per-command timeout
	// would cut long directory imports short.
	ctx := cmd.Context()
	processor := batch.NewProcessor(newService(deps, cfg, backend), jobs, backend.Emitter(), nil, deps.logger(),
		batch.ProcessorConfig{
			Concurrency: ingestConcurrency,
			SourceTag:   ingestSource,
			DryRun:      ingestDryRun,
		})

	result, err := processor.Process(ctx, path)
	if err != nil {
		return err
	}

	err = writeOutput(deps.Out, cfg.OutputFormat, result, func(w io.Writer) error {
		outputIngestResultText(w, newStyles(deps.StdoutIsTerminal()), result)
		return nil
	})
	if err != nil {
		return err
	}

	if result.Status == storage.IngestJobStatusFailed {
		return fmt.Errorf("ingest failed: %d of %d file(s) could not be processed", result.FailedCount, result.TotalFiles)
	}
	return nil
}

// outputIngestResultText prints a batch summary followed by per-file errors.
func outputIngestResultText(w io.Writer, st *styles, r *batch.ProcessResult) {
	if ingestDryRun {
		printf(w, "%s\n", st.render(st.warn, "Dry run: nothing was stored."))
	}
	if r.JobID != "" {
		printf(w, "%s %s\n", st.render(st.label, "Job:"), r.JobID)
	}

	status := st.render(st.ok, string(r.Status))
	if r.Status != storage.IngestJobStatusCompleted {
		status = st.render(st.warn, string(r.Status))
	}
	if r.Status == storage.IngestJobStatusFailed {
		status = st.render(st.fail, string(r.Status))
	}
	printf(w, "%s %s\n", st.render(st.label, "Status:"), status)
	printf(w, "%s %d total, %d imported, %d skipped, %d failed\n",
		st.render(st.label, "Files:"), r.TotalFiles, r.ImportedCount, r.SkippedCount, r.FailedCount)
	if !r.CompletedAt.IsZero() {
		printf(w, "%s %s\n", st.render(st.label, "Duration:"), r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}

	if len(r.Errors) == 0 {
		return
	}
	printf(w, "\n%s\n", st.render(st.header, fmt.Sprintf("Errors (%d)", len(r.Errors))))
	for _, e := range r.Errors {
		printf(w, "  %s  %-18s %s\n", truncate(e.FilePath, 48), e.Code, e.Error)
	}
}
