package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/penf-transcripts/credentials"
)

// NewCredentialsCommand creates the 'credentials' command.
func NewCredentialsCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage stored database and Redis passwords",
		Long: `Manage the passwords used to connect to Postgres and Redis.

Passwords are stored encrypted in ~/.penf-transcripts/credentials.yaml. The
encryption key comes from PENF_ENCRYPTION_KEY, a key derived from
PENF_PASSPHRASE, or the system keyring, in that order.

DB_PASSWORD and PENF_REDIS_PASSWORD always take precedence over stored values.

Examples:
  penf-transcripts credentials set database
  echo "$REDIS_PASS" | penf-transcripts credentials set redis
  penf-transcripts credentials status
  penf-transcripts credentials delete redis`,
		Aliases: []string{"creds"},
	}

	cmd.AddCommand(newCredentialsSetCommand(deps))
	cmd.AddCommand(newCredentialsDeleteCommand(deps))
	cmd.AddCommand(newCredentialsStatusCommand(deps))

	return cmd
}

func newCredentialsSetCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:       "set <database|redis>",
		Short:     "Store a password",
		Long:      "Store a password. It is prompted for on a terminal, otherwise read from the first line of stdin.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: credentials.SecretNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			secret, err := readSecret(deps, fmt.Sprintf("%s password: ", name))
			if err != nil {
				return err
			}
			if secret == "" {
				return fmt.Errorf("empty password; use 'credentials delete %s' to remove it", name)
			}

			store, err := credentials.NewStore()
			if err != nil {
				return err
			}
			if err := store.Set(name, secret); err != nil {
				return err
			}
			printf(deps.Out, "Stored %s password (key: %s).\n", name, store.KeyDescription())
			return nil
		},
	}
}

func newCredentialsDeleteCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:       "delete <database|redis>",
		Short:     "Remove a stored password",
		Args:      cobra.ExactArgs(1),
		ValidArgs: credentials.SecretNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := credentials.NewStore()
			if err != nil {
				return err
			}
			if err := store.Unset(args[0]); err != nil {
				return err
			}
			printf(deps.Out, "Removed %s password.\n", args[0])
			return nil
		},
	}
}

// credentialStatus describes where one secret is resolved from.
type credentialStatus struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source" yaml:"source"`
	Masked string `json:"masked,omitempty" yaml:"masked,omitempty"`
}

func newCredentialsStatusCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which passwords are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			var out []credentialStatus
			for _, name := range credentials.SecretNames() {
				env, err := credentials.EnvVar(name)
				if err != nil {
					return err
				}
				status := credentialStatus{Name: name, Source: "none"}
				if v := os.Getenv(env); v != "" {
					status.Source = "env:" + env
					status.Masked = credentials.MaskSecret(v)
				} else if v, err := credentials.Lookup(name); err != nil {
					status.Source = "error: " + err.Error()
				} else if v != "" {
					status.Source = "file"
					status.Masked = credentials.MaskSecret(v)
				}
				out = append(out, status)
			}

			return writeOutput(deps.Out, cfg.OutputFormat, out, func(w io.Writer) error {
				st := newStyles(deps.StdoutIsTerminal())
				for _, s := range out {
					source := st.render(st.ok, s.Source)
					if s.Source == "none" {
						source = st.render(st.muted, s.Source)
					}
					printf(w, "%-10s %s %s\n", s.Name, source, s.Masked)
				}
				return nil
			})
		},
	}
}

// readSecret prompts without echo on a terminal, otherwise reads one line.
func readSecret(deps *CommandDeps, prompt string) (string, error) {
	if deps.StdinIsTerminal() {
		f, ok := deps.In.(*os.File)
		if ok {
			printf(deps.Out, "%s", prompt)
			b, err := term.ReadPassword(int(f.Fd()))
			printf(deps.Out, "\n")
			if err != nil {
				return "", fmt.Errorf("reading password: %w", err)
			}
			return strings.TrimSpace(string(b)), nil
		}
	}

	line, err := bufio.NewReader(deps.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
