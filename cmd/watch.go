package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-transcripts/config"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/watch"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
	"github.com/otherjamesbrown/penf-transcripts/services/normalizer"
)

// Watch command flags.
var (
	watchExisting bool
	watchDebounce time.Duration
)

// NewWatchCommand creates the 'watch' command.
func NewWatchCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Normalize transcripts as they appear in a directory",
		Long: `Watch a directory tree and normalize every transcript file that is created
or rewritten there.

A file is handled once it has been quiet for the debounce interval, so exports
that are written in several chunks are read once. When a database is
configured each transcript is stored (duplicates are skipped); otherwise the
normalized text is printed.

The directory defaults to watch.dir from the config file or PENF_WATCH_DIR.
Stop with Ctrl-C.

Examples:
  penf-transcripts watch ~/Downloads/meetings
  penf-transcripts watch --existing --debounce 2s
  PENF_WATCH_DIR=~/Zoom penf-transcripts watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, deps, args)
		},
	}

	cmd.Flags().BoolVar(&watchExisting, "existing", false, "Also process transcripts already in the directory")
	cmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before a changed file is read (default from config)")

	return cmd
}

func runWatch(cmd *cobra.Command, deps *CommandDeps, args []string) error {
	cfg, err := deps.config()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	dir := cfg.Watch.Dir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no directory: pass one, set PENF_WATCH_DIR or run 'penf-transcripts config set watch.dir <dir>'")
	}
	dir, err = config.ExpandPath(dir)
	if err != nil {
		return err
	}

	debounce := cfg.Watch.Debounce
	if watchDebounce > 0 {
		debounce = watchDebounce
	}

	logger := deps.serviceLogger(cfg)
	deps.Logger = logger

	var backend *Backend
	if cfg.Database.IsConfigured() || cfg.Redis.Enabled {
		backend, err = deps.ConnectBackend(deps)
		if err != nil {
			return err
		}
		defer backend.Close()
	}

	svc := newService(deps, cfg, backend)
	handler := newWatchHandler(deps, svc, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Watching for transcripts",
		logging.F("dir", dir),
		logging.F("debounce", debounce.String()),
		logging.F("persist", svc.HasStore()))

	w := watch.New(watch.Config{
		Dir:             dir,
		Debounce:        debounce,
		ProcessExisting: watchExisting,
	}, handler, nil, logger)
	return w.Run(ctx)
}

// newWatchHandler stores each settled file, or prints it when there is no store.
func newWatchHandler(deps *CommandDeps, svc *normalizer.Service, logger logging.Logger) watch.Handler {
	var outMu sync.Mutex
	st := newStyles(deps.StdoutIsTerminal())

	return func(ctx context.Context, file meeting.TranscriptFile) error {
		data, err := readFileLimited(file.Path, deps.Config.Validation.MaxBytes)
		if err != nil {
			return err
		}

		req := normalizer.Request{
			Content:       data,
			Format:        file.Format,
			SourcePath:    file.Path,
			Title:         file.Title,
			CorrelationID: uuid.NewString(),
			Persist:       svc.HasStore(),
		}
		if !file.Date.IsZero() {
			date := file.Date
			req.MeetingDate = &date
		}

		result, err := svc.Process(ctx, req)
		if err != nil {
			return err
		}

		if result.Stored || result.Duplicate {
			logger.Info("Transcript stored",
				logging.F("path", file.Path),
				logging.F("transcript_id", result.TranscriptID),
				logging.F("duplicate", result.Duplicate),
				logging.F("format", string(result.Transcript.Format)))
			return nil
		}

		outMu.Lock()
		defer outMu.Unlock()
		printf(deps.Out, "%s\n%s\n\n", st.render(st.header, file.Path), st.transcript(result.Transcript))
		return nil
	}
}

// readFileLimited reads a transcript file under the same raw limit as stdin.
func readFileLimited(path string, maxBytes int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f, maxBytes)
}
