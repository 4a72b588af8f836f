// Package config provides configuration management for the penf-transcripts tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-transcripts/pkg/db"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultTimeout       = 2 * time.Minute
	DefaultOutputFormat  = OutputFormatText
	DefaultConfigDir     = ".penf-transcripts"
	DefaultConfigFile    = "config.yaml"
	DefaultServerAddr    = "localhost:8080"
	DefaultRedisAddr     = "localhost:6379"
	DefaultWatchDebounce = 500 * time.Millisecond
)

// ValidationConfig holds the transcript acceptance limits.
type ValidationConfig struct {
	// MinLength is the minimum trimmed length in characters.
	MinLength int `yaml:"min_length"`

	// MaxBytes is the maximum raw content size in bytes.
	MaxBytes int `yaml:"max_bytes"`

	// MaxNonPrintableRatio is the share of non-printable characters above
	// which content is rejected as binary.
	MaxNonPrintableRatio float64 `yaml:"max_non_printable_ratio"`
}

// Options converts the config section into validator options.
func (v ValidationConfig) Options() meeting.ValidationOptions {
	return meeting.ValidationOptions{
		MinLength:            v.MinLength,
		MaxBytes:             v.MaxBytes,
		MaxNonPrintableRatio: v.MaxNonPrintableRatio,
	}
}

// DatabaseConfig holds PostgreSQL settings. The password is never stored here;
// it comes from the credentials store or DB_PASSWORD.
type DatabaseConfig struct {
	// URL is a full connection string. When set it wins over the fields below.
	URL      string `yaml:"url,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Name     string `yaml:"name,omitempty"`
	User     string `yaml:"user,omitempty"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`
	MaxConns int32  `yaml:"max_conns,omitempty"`
}

// IsConfigured reports whether enough is set to attempt a connection.
func (d DatabaseConfig) IsConfigured() bool {
	return d.URL != "" || d.Host != ""
}

// DBConfig overlays the configured fields on db.ConfigFromEnv.
func (d DatabaseConfig) DBConfig(password string) *db.Config {
	cfg := db.ConfigFromEnv()
	if d.Host != "" {
		cfg.Host = d.Host
	}
	if d.Port != 0 {
		cfg.Port = d.Port
	}
	if d.Name != "" {
		cfg.Database = d.Name
	}
	if d.User != "" {
		cfg.User = d.User
	}
	if d.SSLMode != "" {
		cfg.SSLMode = d.SSLMode
	}
	if d.MaxConns > 0 {
		cfg.MaxConns = d.MaxConns
		if cfg.MinConns > cfg.MaxConns {
			cfg.MinConns = cfg.MaxConns
		}
	}
	if password != "" {
		cfg.Password = password
	}
	cfg.URL = d.URL
	return cfg
}

// RedisConfig holds event publishing settings.
type RedisConfig struct {
	Addr    string `yaml:"addr,omitempty"`
	DB      int    `yaml:"db,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// WatchConfig holds directory watcher settings.
type WatchConfig struct {
	Dir      string        `yaml:"dir,omitempty"`
	Debounce time.Duration `yaml:"-"`
}

// CLIConfig holds all configuration for penf-transcripts.
type CLIConfig struct {
	// OutputFormat specifies the default output format (text, json, yaml).
	OutputFormat OutputFormat `yaml:"output_format"`

	// Timeout bounds a single command.
	Timeout time.Duration `yaml:"-"`

	// Debug enables verbose logging.
	Debug bool `yaml:"debug"`

	Validation ValidationConfig `yaml:"validation"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
}

// DefaultConfig returns a new CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		OutputFormat: DefaultOutputFormat,
		Timeout:      DefaultTimeout,
		Validation: ValidationConfig{
			MinLength:            meeting.DefaultMinLength,
			MaxBytes:             meeting.DefaultMaxBytes,
			MaxNonPrintableRatio: meeting.DefaultMaxNonPrintableRatio,
		},
		Redis:  RedisConfig{Addr: DefaultRedisAddr},
		Server: ServerConfig{Addr: DefaultServerAddr},
		Watch:  WatchConfig{Debounce: DefaultWatchDebounce},
	}
}

// ConfigDir returns the path to the configuration directory.
// PENF_CONFIG_DIR overrides the default of ~/.penf-transcripts.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PENF_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, DefaultConfigFile), nil
}

// LoadConfig loads configuration from the config file and environment variables.
// Order of precedence (highest to lowest):
//  1. Environment variables
//  2. Config file
//  3. Default values
func LoadConfig() (*CLIConfig, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom is LoadConfig with an explicit file path. A missing file is not
// an error.
func LoadConfigFrom(path string) (*CLIConfig, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// configFile is the on-disk shape; durations are strings.
type configFile struct {
	OutputFormat OutputFormat     `yaml:"output_format,omitempty"`
	Timeout      string           `yaml:"timeout,omitempty"`
	Debug        bool             `yaml:"debug,omitempty"`
	Validation   ValidationConfig `yaml:"validation"`
	Database     DatabaseConfig   `yaml:"database,omitempty"`
	Redis        RedisConfig      `yaml:"redis,omitempty"`
	Server       ServerConfig     `yaml:"server,omitempty"`
	Watch        watchFile        `yaml:"watch,omitempty"`
}

type watchFile struct {
	Dir      string `yaml:"dir,omitempty"`
	Debounce string `yaml:"debounce,omitempty"`
}

func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	cfg.Debug = fileCfg.Debug

	if v := fileCfg.Validation; v.MinLength > 0 {
		cfg.Validation.MinLength = v.MinLength
	}
	if v := fileCfg.Validation; v.MaxBytes > 0 {
		cfg.Validation.MaxBytes = v.MaxBytes
	}
	if v := fileCfg.Validation; v.MaxNonPrintableRatio > 0 {
		cfg.Validation.MaxNonPrintableRatio = v.MaxNonPrintableRatio
	}

	cfg.Database = fileCfg.Database

	if fileCfg.Redis.Addr != "" {
		cfg.Redis.Addr = fileCfg.Redis.Addr
	}
	cfg.Redis.DB = fileCfg.Redis.DB
	cfg.Redis.Enabled = fileCfg.Redis.Enabled

	if fileCfg.Server.Addr != "" {
		cfg.Server.Addr = fileCfg.Server.Addr
	}

	cfg.Watch.Dir = fileCfg.Watch.Dir
	if fileCfg.Watch.Debounce != "" {
		debounce, err := time.ParseDuration(fileCfg.Watch.Debounce)
		if err != nil {
			return fmt.Errorf("parsing watch debounce: %w", err)
		}
		cfg.Watch.Debounce = debounce
	}

	return nil
}

// loadFromEnv applies environment variable overrides. Malformed numeric
// values are errors rather than silently ignored.
func loadFromEnv(cfg *CLIConfig) error {
	if format := os.Getenv("PENF_OUTPUT_FORMAT"); format != "" {
		cfg.OutputFormat = OutputFormat(strings.ToLower(format))
	}

	if timeout := os.Getenv("PENF_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("parsing PENF_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	if debug := os.Getenv("PENF_DEBUG"); debug != "" {
		cfg.Debug = debug == "true" || debug == "1"
	}

	if v := os.Getenv("PENF_MIN_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing PENF_MIN_LENGTH: %w", err)
		}
		cfg.Validation.MinLength = n
	}

	if v := os.Getenv("PENF_MAX_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing PENF_MAX_BYTES: %w", err)
		}
		cfg.Validation.MaxBytes = n
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}

	if addr := os.Getenv("PENF_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}

	if addr := os.Getenv("PENF_SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	if dir := os.Getenv("PENF_WATCH_DIR"); dir != "" {
		cfg.Watch.Dir = dir
	}

	return nil
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Validation.MinLength < 0 {
		return fmt.Errorf("validation.min_length must not be negative")
	}
	if c.Validation.MaxBytes < 0 {
		return fmt.Errorf("validation.max_bytes must not be negative")
	}
	if r := c.Validation.MaxNonPrintableRatio; r < 0 || r > 1 {
		return fmt.Errorf("validation.max_non_printable_ratio must be between 0 and 1, got %v", r)
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port: %d", c.Database.Port)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// IsValid checks if the output format is a recognized value.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// Marshal renders the configuration in its on-disk YAML form.
func (c *CLIConfig) Marshal() ([]byte, error) {
	fileCfg := configFile{
		OutputFormat: c.OutputFormat,
		Timeout:      c.Timeout.String(),
		Debug:        c.Debug,
		Validation:   c.Validation,
		Database:     c.Database,
		Redis:        c.Redis,
		Server:       c.Server,
		Watch: watchFile{
			Dir:      c.Watch.Dir,
			Debounce: c.Watch.Debounce.String(),
		},
	}
	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// SaveConfig writes the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	// Ensure config directory exists.
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Set assigns a single dotted key such as "validation.min_length".
func (c *CLIConfig) Set(key, value string) error {
	var err error
	switch key {
	case "output_format":
		c.OutputFormat = OutputFormat(strings.ToLower(value))
	case "timeout":
		c.Timeout, err = time.ParseDuration(value)
	case "debug":
		c.Debug, err = strconv.ParseBool(value)
	case "validation.min_length":
		c.Validation.MinLength, err = strconv.Atoi(value)
	case "validation.max_bytes":
		c.Validation.MaxBytes, err = strconv.Atoi(value)
	case "validation.max_non_printable_ratio":
		c.Validation.MaxNonPrintableRatio, err = strconv.ParseFloat(value, 64)
	case "database.url":
		c.Database.URL = value
	case "database.host":
		c.Database.Host = value
	case "database.port":
		c.Database.Port, err = strconv.Atoi(value)
	case "database.name":
		c.Database.Name = value
	case "database.user":
		c.Database.User = value
	case "database.ssl_mode":
		c.Database.SSLMode = value
	case "database.max_conns":
		var n int64
		n, err = strconv.ParseInt(value, 10, 32)
		c.Database.MaxConns = int32(n)
	case "redis.addr":
		c.Redis.Addr = value
	case "redis.db":
		c.Redis.DB, err = strconv.Atoi(value)
	case "redis.enabled":
		c.Redis.Enabled, err = strconv.ParseBool(value)
	case "server.addr":
		c.Server.Addr = value
	case "watch.dir":
		c.Watch.Dir = value
	case "watch.debounce":
		c.Watch.Debounce, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return c.Validate()
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	configDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(configDir, 0700)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
