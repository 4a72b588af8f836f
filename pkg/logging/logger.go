// Package logging is the structured logger shared by the transcript pipeline.
//
// It wraps zerolog behind a small interface. Long-running commands (serve,
// watch) write JSON lines; interactive commands write a console format to
// stderr so stdout stays clean for transcript output.
//
// Identifiers that follow a transcript through the pipeline (the HTTP request
// id, the ingest job id and the correlation id stamped on events) travel in the
// context and are attached by WithContext.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	correlationIDKey
	jobIDKey
)

// WithRequestID returns a context carrying the HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// WithCorrelationID returns a context carrying the correlation id that is also
// stamped on published events.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withValue(ctx, correlationIDKey, id)
}

// WithJobID returns a context carrying a batch ingest job id.
func WithJobID(ctx context.Context, id string) context.Context {
	return withValue(ctx, jobIDKey, id)
}

// CorrelationID returns the correlation id stored in ctx, if any.
func CorrelationID(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey)
}

// JobID returns the job id stored in ctx, if any.
func JobID(ctx context.Context) string {
	return stringValue(ctx, jobIDKey)
}

func withValue(ctx context.Context, key ctxKey, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, key, id)
}

func stringValue(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// Level is a minimum log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds logger configuration.
type Config struct {
	Level       Level
	ServiceName string
	Environment string

	// JSONFormat selects JSON lines; otherwise a console format is used.
	JSONFormat bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// NoColor disables ANSI colors in console output.
	NoColor bool
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a Logger that adds fields to every entry.
	With(fields ...Field) Logger

	// WithContext returns a Logger tagged with the trace and pipeline ids in ctx.
	WithContext(ctx context.Context) Logger
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err creates the "error" field.
func Err(err error) Field {
	return Field{Key: zerolog.ErrorFieldName, Value: err}
}

type logger struct {
	zl zerolog.Logger
}

// NewLogger creates a Logger. A nil cfg logs info and above to stderr.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = &Config{ServiceName: "penf-transcripts"}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSONFormat {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.NoColor}
	}

	zc := zerolog.New(out).Level(cfg.Level.zerolog()).With().Timestamp()
	if cfg.ServiceName != "" {
		zc = zc.Str("service_name", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		zc = zc.Str("environment", cfg.Environment)
	}
	return &logger{zl: zc.Logger()}
}

func (l *logger) Debug(msg string, fields ...Field) { l.zl.Debug().Fields(flatten(fields)).Msg(msg) }
func (l *logger) Info(msg string, fields ...Field)  { l.zl.Info().Fields(flatten(fields)).Msg(msg) }
func (l *logger) Warn(msg string, fields ...Field)  { l.zl.Warn().Fields(flatten(fields)).Msg(msg) }
func (l *logger) Error(msg string, fields ...Field) { l.zl.Error().Fields(flatten(fields)).Msg(msg) }

func (l *logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &logger{zl: l.zl.With().Fields(flatten(fields)).Logger()}
}

func (l *logger) WithContext(ctx context.Context) Logger {
	var fields []Field
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, F("trace_id", sc.TraceID().String()))
	}
	for _, id := range []struct {
		key   ctxKey
		field string
	}{
		{requestIDKey, "request_id"},
		{correlationIDKey, "correlation_id"},
		{jobIDKey, "job_id"},
	} {
		if v := stringValue(ctx, id.key); v != "" {
			fields = append(fields, F(id.field, v))
		}
	}
	return l.With(fields...)
}

// flatten turns fields into the key/value list zerolog's Fields accepts,
// which keeps their order and encodes errors and durations natively.
func flatten(fields []Field) []interface{} {
	kv := make([]interface{}, 0, 2*len(fields))
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}

type nopLogger struct{}

func (n nopLogger) Debug(string, ...Field)              {}
func (n nopLogger) Info(string, ...Field)               {}
func (n nopLogger) Warn(string, ...Field)               {}
func (n nopLogger) Error(string, ...Field)              {}
func (n nopLogger) With(...Field) Logger                { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return nopLogger{}
}
