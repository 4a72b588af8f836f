package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otherjamesbrown/penf-transcripts/config"
)

// run executes the root command with args and returns what was written to
// the transcript commands' output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PENF_CONFIG_DIR", t.TempDir())
	for _, env := range []string{"PENF_OUTPUT_FORMAT", "PENF_TIMEOUT", "PENF_DEBUG", "PENF_MIN_LENGTH", "PENF_MAX_BYTES", "DATABASE_URL", "PENF_WATCH_DIR"} {
		t.Setenv(env, "")
	}

	var out bytes.Buffer
	deps.In = strings.NewReader(stdin)
	deps.Out = &out
	deps.Config = nil
	deps.StdinIsTerminal = func() bool { return false }
	deps.StdoutIsTerminal = func() bool { return false }
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})

	t.Cleanup(func() {
		cfgFile, outputFormat = "", ""
		timeout, debug = 0, false
		minLength, maxBytes = 0, 0
		for _, name := range []string{"config", "output", "timeout", "debug", "min-length", "max-bytes"} {
			if f := rootCmd.PersistentFlags().Lookup(name); f != nil {
				f.Changed = false
			}
		}
	})

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

const sample = "WEBVTT\n\n<v Alice>Good morning, let's review the launch plan.</v>\n\n<v Bob>Morning! The checklist is nearly done.</v>"

func TestVersionCommand(t *testing.T) {
	if versionCmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", versionCmd.Use)
	}
	if versionCmd.Short != "Print version information" {
		t.Errorf("Unexpected Short: %s", versionCmd.Short)
	}

	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "penf-transcripts ") {
		t.Errorf("Unexpected output: %q", out)
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := run(t, "", "version", "-o", "json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}

	var info map[string]interface{}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, out)
	}
	if info["service_name"] != "penf-transcripts" {
		t.Errorf("service_name = %v, want penf-transcripts", info["service_name"])
	}
	if _, ok := info["go_version"]; !ok {
		t.Error("go_version missing from version output")
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{
		"normalize", "detect", "validate", "participants",
		"ingest", "watch", "list", "show", "job",
		"serve", "db", "credentials", "config", "completion", "version",
	}

	got := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
		if c.GroupID == "" && c.Name() != "help" {
			t.Errorf("command %q has no group", c.Name())
		}
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "output", "timeout", "debug", "min-length", "max-bytes"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag not found on root command", name)
		}
	}
	if f := rootCmd.PersistentFlags().ShorthandLookup("o"); f == nil || f.Name != "output" {
		t.Error("-o should be shorthand for --output")
	}
}

func TestNormalizeFromStdin(t *testing.T) {
	out, err := run(t, sample, "normalize", "--text-only")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	want := "Alice: Good morning, let's review the launch plan.\nBob: Morning! The checklist is nearly done.\n"
	if out != want {
		t.Errorf("normalize output = %q, want %q", out, want)
	}
}

func TestMinLengthFlag(t *testing.T) {
	if _, err := run(t, "short note", "validate"); err == nil {
		t.Fatal("expected validation to fail with default min length")
	}

	out, err := run(t, "short note", "validate", "--min-length", "5")
	if err != nil {
		t.Fatalf("validate with --min-length failed: %v", err)
	}
	if out != "valid\n" {
		t.Errorf("validate output = %q, want %q", out, "valid\n")
	}
}

func TestInvalidOutputFlag(t *testing.T) {
	_, err := run(t, sample, "detect", "-o", "xml")
	if err == nil {
		t.Fatal("expected an error for -o xml")
	}
	if !strings.Contains(err.Error(), "output_format") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfigFileFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("output_format: json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, sample, "detect", "--config", path)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("detect output is not JSON: %v\n%s", err, out)
	}
	if got["format"] != "vtt" {
		t.Errorf("format = %q, want vtt", got["format"])
	}
}

func TestConfigSet_IgnoresFlagOverrides(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "", "config", "set", "validation.min_length", "20")
	if err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if out != "Set validation.min_length = 20\n" {
		t.Errorf("Unexpected output: %q", out)
	}

	// run() gave each call its own config dir; reuse one for both steps.
	t.Setenv("PENF_CONFIG_DIR", dir)
	if err := rootCmd.PersistentFlags().Set("output", "json"); err != nil {
		t.Fatal(err)
	}
	rootCmd.SetArgs([]string{"config", "set", "watch.dir", "/srv/inbox"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config set failed: %v", err)
	}

	cfg, err := config.LoadConfigFrom(filepath.Join(dir, config.DefaultConfigFile))
	if err != nil {
		t.Fatalf("loading saved config: %v", err)
	}
	if cfg.Watch.Dir != "/srv/inbox" {
		t.Errorf("watch.dir = %q, want /srv/inbox", cfg.Watch.Dir)
	}
	if cfg.OutputFormat != config.OutputFormatText {
		t.Errorf("output flag leaked into the saved config: %q", cfg.OutputFormat)
	}
}

func TestConfigSet_UnknownKey(t *testing.T) {
	_, err := run(t, "", "config", "set", "server_address", "localhost:50051")
	if err == nil {
		t.Fatal("expected an error for an unknown key")
	}
	if !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("unexpected error: %v", err)
	}
}
