// Package normalizer runs the transcript pipeline end to end: decode, validate,
// normalize, persist and announce. It backs the CLI, the batch processor, the
// directory watcher and the HTTP API.
package normalizer

import (
	"context"
	"fmt"
	"time"

	pferrors "github.com/otherjamesbrown/penf-transcripts/pkg/errors"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/events"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/storage"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
	"github.com/otherjamesbrown/penf-transcripts/pkg/observability"
)

// RuleDeclared is the detection rule reported when the caller supplied the format.
const RuleDeclared = "declared"

// Store persists normalized transcripts. *storage.Repository implements it.
type Store interface {
	SaveTranscript(ctx context.Context, t *storage.Transcript) (*storage.Transcript, bool, error)
	GetTranscript(ctx context.Context, id string) (*storage.Transcript, error)
	ListTranscripts(ctx context.Context, opts storage.ListOptions) ([]storage.TranscriptSummary, error)
}

// Config wires the service's collaborators. Only Logger is required.
type Config struct {
	Store      Store
	Emitter    events.Emitter
	Metrics    *observability.Metrics
	Validation meeting.ValidationOptions
	Logger     logging.Logger
}

// Request is one transcript to process.
type Request struct {
	// Content is the raw transcript as read from disk or the wire.
	Content []byte

	// Format skips detection when set to a known format.
	Format meeting.TranscriptFormat

	// Validation overrides the service thresholds when non-nil.
	Validation *meeting.ValidationOptions

	SourcePath    string
	Title         string
	MeetingDate   *time.Time
	JobID         string
	CorrelationID string

	// Persist stores the result when the service has a Store.
	Persist bool
}

// Result is the outcome of a successful Process call.
type Result struct {
	Transcript *meeting.NormalizedTranscript `json:"transcript" yaml:"transcript"`
	Summary    meeting.Summary               `json:"summary" yaml:"summary"`
	Rule       string                        `json:"detect_rule" yaml:"detect_rule"`
	Encoding   string                        `json:"encoding" yaml:"encoding"`

	// Set only when the transcript was persisted.
	TranscriptID string `json:"transcript_id,omitempty" yaml:"transcript_id,omitempty"`
	ContentHash  string `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
	Stored       bool   `json:"stored" yaml:"stored"`
	Duplicate    bool   `json:"duplicate" yaml:"duplicate"`
}

// Service runs the transcript pipeline.
type Service struct {
	store   Store
	emitter events.Emitter
	metrics *observability.Metrics
	tracer  *observability.Tracer
	opts    meeting.ValidationOptions
	logger  logging.Logger
}

// New creates a service. A nil Emitter discards events; a nil Store disables
// persistence and lookups.
func New(cfg Config) *Service {
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	opts := cfg.Validation
	if opts == (meeting.ValidationOptions{}) {
		opts = meeting.DefaultValidationOptions()
	}
	return &Service{
		store:   cfg.Store,
		emitter: emitter,
		metrics: cfg.Metrics,
		tracer:  observability.NewTracer(),
		opts:    opts,
		logger:  logger.With(logging.F("component", "normalizer")),
	}
}

// HasStore reports whether the service persists transcripts.
func (s *Service) HasStore() bool {
	return s.store != nil
}

// ValidationOptions returns the thresholds applied when a request has none.
func (s *Service) ValidationOptions() meeting.ValidationOptions {
	return s.opts
}

// Validate checks content against opts, or the service thresholds when opts is nil.
func (s *Service) Validate(content string, opts *meeting.ValidationOptions) meeting.ValidationResult {
	result := meeting.Validate(content, s.optionsFor(opts))
	if !result.Valid {
		s.metrics.RecordValidationFailure(string(result.Code))
	}
	return result
}

// Detect classifies content and names the rule that decided.
func (s *Service) Detect(content string) (meeting.TranscriptFormat, string) {
	format, rule := meeting.DetectWithRule(content)
	s.metrics.RecordDetection(string(format), rule)
	return format, rule
}

// Process decodes, validates and normalizes one transcript, then persists it
// and publishes an event when requested. A validation failure is returned as a
// *errors.PipelineError after a rejected event is published.
func (s *Service) Process(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, pferrors.ClassifyError(err, "process")
	}

	ctx = logging.WithJobID(logging.WithCorrelationID(ctx, req.CorrelationID), req.JobID)
	ctx, span := s.tracer.StartProcess(ctx, req.SourcePath, len(req.Content))
	defer span.End()
	helper := observability.NewSpanHelper(span)

	logger := s.logger.WithContext(ctx)
	if req.SourcePath != "" {
		logger = logger.With(logging.F("source_path", req.SourcePath))
	}

	text, encoding := meeting.DecodeBytes(req.Content)

	start := time.Now()
	validation := s.Validate(text, req.Validation)
	s.metrics.RecordStage("validate", time.Since(start))
	if !validation.Valid {
		err := validation.Err()
		helper.SetError(err, string(pferrors.CodeOf(err)), false)
		s.metrics.RecordTranscript("", observability.StatusRejected, 0, 0)
		logger.Info("Transcript rejected",
			logging.F("code", validation.Code),
			logging.F("reason", validation.Message))
		s.publishRejected(ctx, req, validation)
		return nil, err
	}

	start = time.Now()
	format, rule := req.Format, RuleDeclared
	if !format.IsValid() {
		format, rule = s.Detect(text)
	}
	transcript := meeting.NormalizeAs(text, format)
	s.metrics.RecordStage("normalize", time.Since(start))
	helper.SetDetection(string(format), rule)
	helper.SetResult(len(transcript.Entries), len(transcript.Participants))

	result := &Result{
		Transcript: transcript,
		Summary:    transcript.Summarize(),
		Rule:       rule,
		Encoding:   encoding,
	}

	status := observability.StatusNormalized
	if req.Persist && s.store != nil {
		if err := s.persist(ctx, req, result); err != nil {
			pe := pferrors.ClassifyError(err, "persist")
			helper.SetError(pe, string(pe.Code), pferrors.IsRetryable(pe.Code))
			s.metrics.RecordTranscript(string(format), observability.StatusFailed, 0, 0)
			logger.Error("Failed to persist transcript", logging.Err(err))
			return nil, pe
		}
		if result.Duplicate {
			status = observability.StatusDuplicate
		}
		helper.SetTranscriptID(result.TranscriptID)
		s.publishNormalized(ctx, req, result)
	}

	s.metrics.RecordTranscript(string(format), status, result.Summary.EntryCount, result.Summary.Participants)
	helper.SetSuccess()

	logger.Debug("Transcript normalized",
		logging.F("format", format),
		logging.F("rule", rule),
		logging.F("entries", result.Summary.EntryCount),
		logging.F("participants", result.Summary.Participants),
		logging.F("stored", result.Stored),
		logging.F("duplicate", result.Duplicate))

	return result, nil
}

// Get loads a stored transcript.
func (s *Service) Get(ctx context.Context, id string) (*storage.Transcript, error) {
	if s.store == nil {
		return nil, fmt.Errorf("transcript storage not configured: %w", pferrors.ErrUnavailable)
	}
	return s.store.GetTranscript(ctx, id)
}

// List returns stored transcript summaries.
func (s *Service) List(ctx context.Context, opts storage.ListOptions) ([]storage.TranscriptSummary, error) {
	if s.store == nil {
		return nil, fmt.Errorf("transcript storage not configured: %w", pferrors.ErrUnavailable)
	}
	return s.store.ListTranscripts(ctx, opts)
}

func (s *Service) optionsFor(override *meeting.ValidationOptions) meeting.ValidationOptions {
	if override == nil {
		return s.opts
	}
	opts := *override
	if opts.MinLength <= 0 {
		opts.MinLength = s.opts.MinLength
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = s.opts.MaxBytes
	}
	if opts.MaxNonPrintableRatio <= 0 {
		opts.MaxNonPrintableRatio = s.opts.MaxNonPrintableRatio
	}
	return opts
}

func (s *Service) persist(ctx context.Context, req Request, result *Result) error {
	ctx, span := s.tracer.Start(ctx, observability.SpanPersist)
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordStage("persist", time.Since(start)) }()

	t := result.Transcript
	stored, created, err := s.store.SaveTranscript(ctx, &storage.Transcript{
		SourcePath:   req.SourcePath,
		Title:        req.Title,
		MeetingDate:  req.MeetingDate,
		Format:       t.Format,
		Encoding:     result.Encoding,
		RawText:      t.RawText,
		Entries:      t.Entries,
		Participants: t.Participants,
		EntryCount:   result.Summary.EntryCount,
		WordCount:    result.Summary.WordCount,
	})
	if err != nil {
		return fmt.Errorf("storage: saving transcript: %w", err)
	}

	result.TranscriptID = stored.ID
	result.ContentHash = stored.ContentHash
	result.Stored = created
	result.Duplicate = !created
	return nil
}

// Publishing is best effort: a stored transcript is not rolled back when Redis
// is down.
func (s *Service) publishNormalized(ctx context.Context, req Request, result *Result) {
	ctx, span := s.tracer.Start(ctx, observability.SpanPublish)
	defer span.End()

	err := s.emitter.Emit(ctx, &events.TranscriptNormalizedEvent{
		Envelope:     events.Envelope{CorrelationID: req.CorrelationID},
		TranscriptID: result.TranscriptID,
		JobID:        req.JobID,
		SourcePath:   req.SourcePath,
		Format:       string(result.Transcript.Format),
		EntryCount:   result.Summary.EntryCount,
		WordCount:    result.Summary.WordCount,
		Participants: result.Transcript.Participants,
		ContentHash:  result.ContentHash,
		Duplicate:    result.Duplicate,
	})
	if err != nil {
		s.logger.Warn("Failed to publish normalized event",
			logging.Err(err),
			logging.F("transcript_id", result.TranscriptID))
	}
}

func (s *Service) publishRejected(ctx context.Context, req Request, validation meeting.ValidationResult) {
	err := s.emitter.Emit(ctx, &events.TranscriptRejectedEvent{
		Envelope:   events.Envelope{CorrelationID: req.CorrelationID},
		JobID:      req.JobID,
		SourcePath: req.SourcePath,
		Code:       string(validation.Code),
		Message:    validation.Message,
	})
	if err != nil {
		s.logger.Warn("Failed to publish rejected event", logging.Err(err))
	}
}
