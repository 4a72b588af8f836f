// Package cmd provides CLI commands for the penf-transcripts tool.
package cmd

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/otherjamesbrown/penf-transcripts/config"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
)

// CommandDeps holds the dependencies shared by transcript commands. The root
// command fills Config and Logger before any subcommand runs.
type CommandDeps struct {
	Config     *config.CLIConfig
	Logger     logging.Logger
	LoadConfig func() (*config.CLIConfig, error)

	In  io.Reader
	Out io.Writer

	// StdinIsTerminal and StdoutIsTerminal decide between piped input and
	// styled output.
	StdinIsTerminal  func() bool
	StdoutIsTerminal func() bool

	// ConnectBackend opens Postgres and Redis as configured.
	ConnectBackend func(deps *CommandDeps) (*Backend, error)
}

// DefaultDeps returns the default dependencies for production use.
func DefaultDeps() *CommandDeps {
	return &CommandDeps{
		LoadConfig:       config.LoadConfig,
		In:               os.Stdin,
		Out:              os.Stdout,
		StdinIsTerminal:  func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		StdoutIsTerminal: func() bool { return term.IsTerminal(int(os.Stdout.Fd())) },
		ConnectBackend:   connectBackend,
	}
}

// config returns the loaded configuration, loading it on first use.
func (d *CommandDeps) config() (*config.CLIConfig, error) {
	if d.Config != nil {
		return d.Config, nil
	}
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, err
	}
	d.Config = cfg
	return cfg, nil
}

func (d *CommandDeps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.NewNopLogger()
	}
	return d.Logger
}

// serviceLogger is the JSON logger used by the long-running commands.
func (d *CommandDeps) serviceLogger(cfg *config.CLIConfig) logging.Logger {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: "penf-transcripts",
		Environment: "production",
		JSONFormat:  true,
		Output:      os.Stderr,
	})
}
