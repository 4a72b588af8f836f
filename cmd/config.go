package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-transcripts/config"
)

const configKeysHelp = `Available keys:
  output_format                        Default output format (text, json, yaml)
  timeout                              Command timeout (e.g., 30s, 1m)
  debug                                Enable debug logging (true/false)
  validation.min_length                Minimum transcript length in characters
  validation.max_bytes                 Maximum transcript size in bytes
  validation.max_non_printable_ratio   Binary detection threshold (0-1)
  database.url                         Postgres connection URL
  database.host / port / name / user / ssl_mode / max_conns
  redis.addr / redis.db / redis.enabled
  server.addr                          Listen address for 'serve'
  watch.dir / watch.debounce           Defaults for 'watch'

Passwords are not config values; use 'penf-transcripts credentials set'.`

// NewConfigCommand creates the config command group.
func NewConfigCommand(deps *CommandDeps) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `View and modify the penf-transcripts configuration settings.`,
	}
	c.AddCommand(newConfigShowCommand(deps))
	c.AddCommand(newConfigInitCommand())
	c.AddCommand(newConfigSetCommand())
	c.AddCommand(newConfigPathCommand())
	return c
}

func newConfigShowCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long: `Display the effective configuration: the config file overlaid with
environment variables and command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			var doc map[string]interface{}
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return err
			}
			return writeOutput(c.OutOrStdout(), cfg.OutputFormat, doc, func(w io.Writer) error {
				if path, err := config.ConfigPath(); err == nil {
					printf(w, "# %s\n", path)
				}
				_, err := w.Write(data)
				return err
			})
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  `Create a configuration file with default values unless one already exists.`,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			path, err := config.ConfigPath()
			if err != nil {
				return fmt.Errorf("getting config path: %w", err)
			}
			if _, err := os.Stat(path); err == nil {
				printf(out, "Configuration file already exists: %s\n", path)
				printf(out, "Use 'penf-transcripts config show' to view current settings.\n")
				return nil
			}

			defaults := config.DefaultConfig()
			if err := config.SaveConfig(defaults); err != nil {
				return fmt.Errorf("saving configuration: %w", err)
			}
			printf(out, "Created configuration file: %s\n\n", path)
			printf(out, "Default settings:\n")
			printf(out, "  %-15s %s\n", "Timeout:", defaults.Timeout)
			printf(out, "  %-15s %s\n", "Output format:", defaults.OutputFormat)
			printf(out, "  %-15s %d\n", "Min length:", defaults.Validation.MinLength)
			printf(out, "  %-15s %d\n", "Max bytes:", defaults.Validation.MaxBytes)
			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the config file.

` + configKeysHelp + `

Examples:
  penf-transcripts config set output_format json
  penf-transcripts config set validation.min_length 20
  penf-transcripts config set database.url postgres://penf@localhost/transcripts
  penf-transcripts config set watch.dir ~/Downloads/meetings`,
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			// Edit the file as written, not the flag-adjusted configuration.
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			fileCfg, err := config.LoadConfigFrom(path)
			if err != nil {
				return err
			}

			if err := fileCfg.Set(key, value); err != nil {
				return err
			}
			if err := config.SaveConfig(fileCfg); err != nil {
				return fmt.Errorf("saving configuration: %w", err)
			}
			printf(c.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			printf(c.OutOrStdout(), "%s\n", path)
			return nil
		},
	}
}
