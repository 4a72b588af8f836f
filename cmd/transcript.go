package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-transcripts/config"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/services/normalizer"
)

// Normalize command flags.
var (
	normalizeTextOnly bool
	normalizeFormat   string
	normalizePersist  bool
	normalizeTitle    string
)

// commandContext bounds a command by the configured timeout.
func commandContext(cmd *cobra.Command, cfg *config.CLIConfig) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, cfg.Timeout)
}

// newService builds a pipeline over the optional backend.
func newService(deps *CommandDeps, cfg *config.CLIConfig, backend *Backend) *normalizer.Service {
	return normalizer.New(normalizer.Config{
		Store:      backend.Store(),
		Emitter:    backend.Emitter(),
		Validation: cfg.Validation.Options(),
		Logger:     deps.logger(),
	})
}

// parseFormatFlag validates a --format value. Empty means detect.
func parseFormatFlag(value string) (meeting.TranscriptFormat, error) {
	if value == "" {
		return "", nil
	}
	f := meeting.TranscriptFormat(value)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid format %q (must be one of vtt, srt, teams-text, plain)", value)
	}
	return f, nil
}

// NewNormalizeCommand creates the 'normalize' command.
func NewNormalizeCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "normalize [file|-]",
		Short: "Normalize a transcript into Speaker: text lines",
		Long: `Validate a transcript, detect its format and rewrite it into the canonical
"[M:SS] Speaker: text" form.

Input is read from the named file, or from stdin when the argument is '-' or
omitted with piped input. Text output is colored per speaker on a terminal.

Examples:
  penf-transcripts normalize meeting.vtt
  pbpaste | penf-transcripts normalize --text-only
  penf-transcripts normalize standup.txt --format teams-text -o json
  penf-transcripts normalize meeting.vtt --persist --title "Weekly sync"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(cmd, deps, args)
		},
	}

	cmd.Flags().BoolVar(&normalizeTextOnly, "text-only", false, "Print only the flat normalized text")
	cmd.Flags().StringVar(&normalizeFormat, "format", "", "Skip detection and parse as this format")
	cmd.Flags().BoolVar(&normalizePersist, "persist", false, "Store the result in the database")
	cmd.Flags().StringVar(&normalizeTitle, "title", "", "Title stored with the transcript")

	return cmd
}

func runNormalize(cmd *cobra.Command, deps *CommandDeps, args []string) error {
	cfg, err := deps.config()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	format, err := parseFormatFlag(normalizeFormat)
	if err != nil {
		return err
	}

	in, err := readInput(deps, args, cfg.Validation.MaxBytes)
	if err != nil {
		return err
	}

	var backend *Backend
	if normalizePersist {
		backend, err = requireStore(deps)
		if err != nil {
			return err
		}
		defer backend.Close()
	}

	ctx, cancel := commandContext(cmd, cfg)
	defer cancel()

	svc := newService(deps, cfg, backend)
	result, err := svc.Process(ctx, normalizer.Request{
		Content:    in.Data,
		Format:     format,
		SourcePath: in.Path,
		Title:      normalizeTitle,
		Persist:    normalizePersist,
	})
	if err != nil {
		return err
	}

	if normalizeTextOnly {
		_, err := fmt.Fprintln(deps.Out, result.Transcript.RawText)
		return err
	}

	return writeOutput(deps.Out, cfg.OutputFormat, result, func(w io.Writer) error {
		st := newStyles(deps.StdoutIsTerminal())
		printf(w, "%s\n", st.transcript(result.Transcript))
		printf(w, "\n%s\n", st.render(st.muted, fmt.Sprintf("format=%s entries=%d participants=%s",
			result.Transcript.Format, result.Summary.EntryCount, joinOrDash(result.Transcript.Participants))))
		switch {
		case result.Duplicate:
			printf(w, "%s\n", st.render(st.warn, "Already stored as "+result.TranscriptID))
		case result.Stored:
			printf(w, "%s\n", st.render(st.ok, "Stored as "+result.TranscriptID))
		}
		return nil
	})
}

// detectOutput is the structured result of 'detect'.
type detectOutput struct {
	Format   meeting.TranscriptFormat `json:"format" yaml:"format"`
	Rule     string                   `json:"rule" yaml:"rule"`
	Encoding string                   `json:"encoding" yaml:"encoding"`
}

// NewDetectCommand creates the 'detect' command.
func NewDetectCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	return &cobra.Command{
		Use:   "detect [file|-]",
		Short: "Print the detected transcript format",
		Long: `Classify a transcript as vtt, srt, teams-text or plain.

The first matching signature wins; plain is the fallback. Structured output also
names the signature that matched.

Examples:
  penf-transcripts detect meeting.txt
  penf-transcripts detect - -o json < export.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			in, err := readInput(deps, args, cfg.Validation.MaxBytes)
			if err != nil {
				return err
			}

			content, encoding := meeting.DecodeBytes(in.Data)
			format, rule := newService(deps, cfg, nil).Detect(content)
			out := detectOutput{Format: format, Rule: rule, Encoding: encoding}

			return writeOutput(deps.Out, cfg.OutputFormat, out, func(w io.Writer) error {
				printf(w, "%s\n", format)
				return nil
			})
		},
	}
}

// NewValidateCommand creates the 'validate' command.
func NewValidateCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	return &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Check a transcript against the acceptance limits",
		Long: `Check that a transcript is non-empty, long enough, not too large and not
binary. Exits non-zero when the transcript is rejected.

Limits come from the validation section of the config file, PENF_MIN_LENGTH /
PENF_MAX_BYTES, or --min-length / --max-bytes.

Examples:
  penf-transcripts validate meeting.vtt
  penf-transcripts validate notes.txt --min-length 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			in, err := readInput(deps, args, cfg.Validation.MaxBytes)
			if err != nil {
				return err
			}

			content, _ := meeting.DecodeBytes(in.Data)
			result := newService(deps, cfg, nil).Validate(content, nil)

			err = writeOutput(deps.Out, cfg.OutputFormat, result, func(w io.Writer) error {
				st := newStyles(deps.StdoutIsTerminal())
				if result.Valid {
					printf(w, "%s\n", st.render(st.ok, "valid"))
				} else {
					printf(w, "%s %s: %s\n", st.render(st.fail, "invalid"), result.Code, result.Message)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return result.Err()
		},
	}
}

// participantsOutput is the structured result of 'participants'.
type participantsOutput struct {
	Participants []string `json:"participants" yaml:"participants"`
}

// NewParticipantsCommand creates the 'participants' command.
func NewParticipantsCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	return &cobra.Command{
		Use:   "participants [file|-]",
		Short: "List the named speakers of a transcript",
		Long: `Normalize a transcript and print the distinct speaker names, sorted.

Examples:
  penf-transcripts participants meeting.vtt
  penf-transcripts participants export.txt -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			in, err := readInput(deps, args, cfg.Validation.MaxBytes)
			if err != nil {
				return err
			}

			content, _ := meeting.DecodeBytes(in.Data)
			out := participantsOutput{Participants: meeting.Normalize(content).Participants}

			return writeOutput(deps.Out, cfg.OutputFormat, out, func(w io.Writer) error {
				st := newStyles(deps.StdoutIsTerminal())
				for _, p := range out.Participants {
					printf(w, "%s\n", st.speaker(p, ""))
				}
				return nil
			})
		},
	}
}
