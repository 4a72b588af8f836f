package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/penf-transcripts/config"
	"github.com/otherjamesbrown/penf-transcripts/pkg/buildinfo"
	"github.com/otherjamesbrown/penf-transcripts/pkg/db"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/watch"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
	"github.com/otherjamesbrown/penf-transcripts/pkg/observability"
	"github.com/otherjamesbrown/penf-transcripts/services/normalizer"
)

// Serve command flags.
var (
	serveAddr     string
	serveWatchDir string
)

// NewServeCommand creates the 'serve' command.
func NewServeCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transcript normalization HTTP API",
		Long: `Run the HTTP API.

Endpoints:
  POST /v1/normalize         Normalize a transcript (text/plain or JSON body)
  POST /v1/detect            Detect the format
  POST /v1/validate          Check the acceptance limits
  POST /v1/participants      List speakers
  GET  /v1/transcripts       List stored transcripts
  GET  /v1/transcripts/{id}  Fetch a stored transcript
  GET  /healthz /readyz /version /metrics

Storage and event publishing are enabled when a database and Redis are
configured. With --watch-dir the server also ingests transcripts dropped into
that directory.

Examples:
  penf-transcripts serve
  penf-transcripts serve --addr :9090
  DATABASE_URL=postgres://localhost/penf penf-transcripts serve --watch-dir /srv/inbox`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, deps)
		},
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, "+config.DefaultServerAddr+")")
	cmd.Flags().StringVar(&serveWatchDir, "watch-dir", "", "Also ingest transcripts written to this directory")

	return cmd
}

func runServe(cmd *cobra.Command, deps *CommandDeps) error {
	cfg, err := deps.config()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	logger := deps.serviceLogger(cfg)
	deps.Logger = logger
	logger.Info("Starting service", logging.F("version", buildinfo.String()))

	backend, err := deps.ConnectBackend(deps)
	if err != nil {
		return err
	}
	defer backend.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)
	if backend.Pool != nil {
		if _, err := db.RegisterPoolStatsCollector(backend.Pool, observability.Namespace, normalizer.ServiceName, reg); err != nil {
			return fmt.Errorf("registering pool metrics: %w", err)
		}
	}

	svc := normalizer.New(normalizer.Config{
		Store:      backend.Store(),
		Emitter:    backend.Emitter(),
		Metrics:    metrics,
		Validation: cfg.Validation.Options(),
		Logger:     logger,
	})
	server := normalizer.NewServer(svc, normalizer.ServerConfig{
		Checks:   backend.Checks(),
		Gatherer: reg,
		Metrics:  metrics,
		Logger:   logger,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var watcher *watch.Watcher
	if serveWatchDir != "" {
		dir, err := config.ExpandPath(serveWatchDir)
		if err != nil {
			return err
		}
		watcher = watch.New(watch.Config{Dir: dir, Debounce: cfg.Watch.Debounce},
			newWatchHandler(deps, svc, logger), metrics, logger)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, addr)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	return g.Wait()
}
