// Package main provides the penf-transcripts CLI entry point.
// penf-transcripts detects meeting transcript formats and normalizes them into
// plain "Speaker: text" transcripts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-transcripts/cmd"
	"github.com/otherjamesbrown/penf-transcripts/config"
	"github.com/otherjamesbrown/penf-transcripts/pkg/buildinfo"
	pferrors "github.com/otherjamesbrown/penf-transcripts/pkg/errors"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
)

// Global flags and state.
var (
	cfgFile      string
	timeout      time.Duration
	outputFormat string
	debug        bool
	minLength    int
	maxBytes     int

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig

	// deps is shared by every transcript command.
	deps = cmd.DefaultDeps()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "penf-transcripts",
	Short: "Detect and normalize meeting transcripts",
	Long: `penf-transcripts turns meeting transcripts into clean "Speaker: text" form.

It recognizes WebVTT (Zoom, Teams, Webex, Meet), SRT subtitles, the Teams
"copy transcript" text layout and plain text, validates the input, and
renders one line (or paragraph) per speaker turn with the distinct
participants listed.

Commands read a file argument or piped stdin and support --output json|yaml
for structured results.

COMMON WORKFLOWS:
  One-off:      pbpaste | penf-transcripts normalize
  Inspect:      penf-transcripts detect meeting.txt  →  penf-transcripts participants meeting.txt
  Bulk import:  penf-transcripts ingest ./exports  →  penf-transcripts list
  Drop folder:  penf-transcripts watch ~/Downloads/meetings
  Service:      penf-transcripts serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if c.Name() == "version" || c.Name() == "help" || c.Name() == "completion" {
			return nil
		}

		var err error
		if cfgFile != "" {
			path, perr := config.ExpandPath(cfgFile)
			if perr != nil {
				return perr
			}
			cfg, err = config.LoadConfigFrom(path)
		} else {
			cfg, err = config.LoadConfig()
		}
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		if err := applyFlags(c, cfg); err != nil {
			return err
		}

		deps.Config = cfg
		deps.Logger = newConsoleLogger(cfg)
		return nil
	},
}

// applyFlags overrides configuration with explicitly set global flags.
func applyFlags(c *cobra.Command, cfg *config.CLIConfig) error {
	flags := c.Flags()
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("output") {
		cfg.OutputFormat = config.OutputFormat(outputFormat)
	}
	if debug {
		cfg.Debug = true
	}
	if flags.Changed("min-length") {
		cfg.Validation.MinLength = minLength
	}
	if flags.Changed("max-bytes") {
		cfg.Validation.MaxBytes = maxBytes
	}
	return cfg.Validate()
}

// newConsoleLogger logs warnings to stderr, or everything with --debug.
func newConsoleLogger(cfg *config.CLIConfig) logging.Logger {
	level := logging.LevelWarn
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: "penf-transcripts",
		Environment: "cli",
		Output:      os.Stderr,
		NoColor:     !term.IsTerminal(int(os.Stderr.Fd())),
	})
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of penf-transcripts.

Examples:
  penf-transcripts version
  penf-transcripts version --output json`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get("penf-transcripts")
		out := c.OutOrStdout()

		switch config.OutputFormat(outputFormat) {
		case config.OutputFormatJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case config.OutputFormatYAML:
			enc := yaml.NewEncoder(out)
			defer enc.Close()
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "penf-transcripts %s\n", info.Version)
		fmt.Fprintf(out, "  Commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  Built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  Go version: %s\n", info.GoVersion)
		if info.Modified {
			fmt.Fprintf(out, "  Modified:   true\n")
		}
		return nil
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for penf-transcripts.

Bash:
  $ source <(penf-transcripts completion bash)

Zsh:
  $ penf-transcripts completion zsh > "${fpath[1]}/_penf-transcripts"

Fish:
  $ penf-transcripts completion fish | source`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(c *cobra.Command, args []string) error {
		out := c.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		default:
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
	},
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.penf-transcripts/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "command timeout (e.g., 30s, 1m)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&minLength, "min-length", 0, "minimum transcript length in characters")
	rootCmd.PersistentFlags().IntVar(&maxBytes, "max-bytes", 0, "maximum transcript size in bytes")

	// Add command groups for organized help output.
	rootCmd.AddGroup(
		&cobra.Group{ID: "transcripts", Title: "Transcripts:"},
		&cobra.Group{ID: "storage", Title: "Storage & Ingest:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	for _, c := range []*cobra.Command{
		cmd.NewNormalizeCommand(deps),
		cmd.NewDetectCommand(deps),
		cmd.NewValidateCommand(deps),
		cmd.NewParticipantsCommand(deps),
	} {
		c.GroupID = "transcripts"
		rootCmd.AddCommand(c)
	}

	for _, c := range []*cobra.Command{
		cmd.NewIngestCommand(deps),
		cmd.NewWatchCommand(deps),
		cmd.NewListCommand(deps),
		cmd.NewShowCommand(deps),
		cmd.NewJobCommand(deps),
	} {
		c.GroupID = "storage"
		rootCmd.AddCommand(c)
	}

	for _, c := range []*cobra.Command{
		cmd.NewServeCommand(deps),
		cmd.NewDbCommand(deps),
	} {
		c.GroupID = "ops"
		rootCmd.AddCommand(c)
	}

	credentialsCmd := cmd.NewCredentialsCommand(deps)
	credentialsCmd.GroupID = "setup"
	rootCmd.AddCommand(credentialsCmd)

	configCmd := cmd.NewConfigCommand(deps)
	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code := pferrors.CodeOf(err); code != "" {
			fmt.Fprintf(os.Stderr, "%s. %s\n", pferrors.GetDescription(code), pferrors.GetSuggestedAction(code))
		}
		stop()
		os.Exit(1)
	}
}
