// Package batch normalizes and stores every transcript file under a path.
package batch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	pferrors "github.com/otherjamesbrown/penf-transcripts/pkg/errors"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/events"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/storage"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
	"github.com/otherjamesbrown/penf-transcripts/pkg/observability"
	"github.com/otherjamesbrown/penf-transcripts/services/normalizer"
)

// DefaultConcurrency is the default number of concurrent workers.
const DefaultConcurrency = 4

// ProcessorConfig configures the batch processor.
type ProcessorConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int

	// SourceTag identifies where the transcripts came from.
	SourceTag string

	// DryRun normalizes files without persisting or publishing anything.
	DryRun bool
}

// ProcessResult contains the result of a batch run.
type ProcessResult struct {
	JobID         string                  `json:"job_id,omitempty"`
	TotalFiles    int                     `json:"total_files"`
	ImportedCount int                     `json:"imported"`
	SkippedCount  int                     `json:"skipped"`
	FailedCount   int                     `json:"failed"`
	StartedAt     time.Time               `json:"started_at"`
	CompletedAt   time.Time               `json:"completed_at"`
	Status        storage.IngestJobStatus `json:"status"`
	Success       bool                    `json:"success"`
	Errors        []FileError             `json:"errors"`
}

// FileError records an error for a specific file.
type FileError struct {
	FilePath string `json:"file_path"`
	Code     string `json:"code"`
	Error    string `json:"error"`
}

// Pipeline processes one transcript. *normalizer.Service implements it.
type Pipeline interface {
	Process(ctx context.Context, req normalizer.Request) (*normalizer.Result, error)
}

// JobStore records job state. *storage.Repository implements it.
type JobStore interface {
	CreateJob(ctx context.Context, job *storage.IngestJob) error
	UpdateJobProgress(ctx context.Context, jobID string, imported, skipped, failed int) error
	CompleteJob(ctx context.Context, jobID string, status storage.IngestJobStatus) error
	RecordError(ctx context.Context, jobID, filePath, code, message string) error
}

// Processor runs the pipeline over a set of transcript files.
type Processor struct {
	cfg      ProcessorConfig
	pipeline Pipeline
	jobs     JobStore
	emitter  events.Emitter
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	logger   logging.Logger

	progress *Progress
	mu       sync.Mutex
}

// NewProcessor creates a batch processor. jobs may be nil, in which case no
// job bookkeeping happens; emitter may be nil to skip the completion event.
func NewProcessor(
	pipeline Pipeline,
	jobs JobStore,
	emitter events.Emitter,
	metrics *observability.Metrics,
	logger logging.Logger,
	cfg ProcessorConfig,
) *Processor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if emitter == nil {
		emitter = events.Nop{}
	}

	return &Processor{
		cfg:      cfg,
		pipeline: pipeline,
		jobs:     jobs,
		emitter:  emitter,
		metrics:  metrics,
		tracer:   observability.NewTracer(),
		logger:   logger.With(logging.F("component", "batch_processor")),
		progress: NewProgress(0),
	}
}

// Progress returns the progress tracker of the current or last run.
func (p *Processor) Progress() *Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Process ingests every transcript file at path (file or directory).
func (p *Processor) Process(ctx context.Context, path string) (*ProcessResult, error) {
	files, err := meeting.ScanTranscriptFiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	return p.ProcessFiles(ctx, files)
}

// ProcessFiles ingests the given files as one job.
func (p *Processor) ProcessFiles(ctx context.Context, files []meeting.TranscriptFile) (*ProcessResult, error) {
	result := &ProcessResult{
		TotalFiles: len(files),
		StartedAt:  time.Now(),
		Errors:     []FileError{},
	}

	progress := NewProgress(len(files))
	p.mu.Lock()
	p.progress = progress
	p.mu.Unlock()

	if len(files) == 0 {
		result.CompletedAt = time.Now()
		result.Status = storage.IngestJobStatusCompleted
		result.Success = true
		progress.Complete(true)
		return result, nil
	}

	persist := !p.cfg.DryRun && p.jobs != nil
	if persist {
		job := &storage.IngestJob{Source: p.cfg.SourceTag, TotalFiles: len(files)}
		if err := p.jobs.CreateJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to create ingest job: %w", err)
		}
		result.JobID = job.ID
	}

	ctx = logging.WithJobID(ctx, result.JobID)
	ctx, span := p.tracer.StartIngestJob(ctx, result.JobID)
	defer span.End()

	logger := p.logger.WithContext(ctx).With(
		logging.F("files", len(files)),
		logging.F("dry_run", p.cfg.DryRun))
	logger.Info("Batch ingest started")

	progress.Start()
	if p.cfg.Concurrency == 1 {
		p.processSequential(ctx, files, result)
	} else {
		p.processParallel(ctx, files, result)
	}

	result.CompletedAt = time.Now()
	result.Status = finalStatus(ctx, result)
	result.Success = result.Status == storage.IngestJobStatusCompleted

	// Bookkeeping outlives a cancelled run so the job row is closed.
	finishCtx := context.WithoutCancel(ctx)
	if persist {
		if err := p.jobs.CompleteJob(finishCtx, result.JobID, result.Status); err != nil {
			logger.Warn("Failed to complete job", logging.Err(err))
		}
		if err := p.emitter.Emit(finishCtx, &events.IngestJobCompletedEvent{
			JobID:         result.JobID,
			SourceTag:     p.cfg.SourceTag,
			TotalFiles:    result.TotalFiles,
			ImportedCount: result.ImportedCount,
			SkippedCount:  result.SkippedCount,
			FailedCount:   result.FailedCount,
			StartedAt:     result.StartedAt,
			CompletedAt:   result.CompletedAt,
			Success:       result.Success,
			FinalStatus:   string(result.Status),
		}); err != nil {
			logger.Warn("Failed to publish completion event", logging.Err(err))
		}
	}

	if result.Status == storage.IngestJobStatusCancelled {
		progress.Cancel()
	} else {
		progress.Complete(result.Success)
	}

	logger.Info("Batch ingest finished",
		logging.F("status", string(result.Status)),
		logging.F("imported", result.ImportedCount),
		logging.F("skipped", result.SkippedCount),
		logging.F("failed", result.FailedCount),
		logging.F("duration", result.CompletedAt.Sub(result.StartedAt)))

	return result, nil
}

func finalStatus(ctx context.Context, r *ProcessResult) storage.IngestJobStatus {
	switch {
	case ctx.Err() != nil:
		return storage.IngestJobStatusCancelled
	case r.FailedCount == 0:
		return storage.IngestJobStatusCompleted
	case r.FailedCount == r.TotalFiles:
		return storage.IngestJobStatusFailed
	default:
		return storage.IngestJobStatusCompletedErrors
	}
}

// processSequential processes files one at a time.
func (p *Processor) processSequential(ctx context.Context, files []meeting.TranscriptFile, result *ProcessResult) {
	progress := p.Progress()
	for _, file := range files {
		if ctx.Err() != nil {
			return
		}
		progress.SetCurrentFile(file.Path)
		p.recordOutcome(ctx, file, p.processFile(ctx, result.JobID, file), result)
	}
}

// processParallel processes files using a worker pool.
func (p *Processor) processParallel(ctx context.Context, files []meeting.TranscriptFile, result *ProcessResult) {
	filesCh := make(chan meeting.TranscriptFile, len(files))
	resultsCh := make(chan fileOutcome, len(files))
	progress := p.Progress()

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range filesCh {
				if ctx.Err() != nil {
					continue
				}
				progress.SetCurrentFile(file.Path)
				resultsCh <- fileOutcome{file: file, outcome: p.processFile(ctx, result.JobID, file)}
			}
		}()
	}

	for _, file := range files {
		filesCh <- file
	}
	close(filesCh)

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	for fo := range resultsCh {
		p.recordOutcome(ctx, fo.file, fo.outcome, result)
	}
}

type fileOutcome struct {
	file    meeting.TranscriptFile
	outcome outcome
}

type outcome struct {
	status       Outcome
	transcriptID string
	err          error
}

// processFile reads and processes a single file.
func (p *Processor) processFile(ctx context.Context, jobID string, file meeting.TranscriptFile) outcome {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return outcome{status: OutcomeFailed, err: &pferrors.PipelineError{
			Code:    pferrors.ErrReadError,
			Stage:   "read",
			Message: err.Error(),
			Cause:   err,
		}}
	}

	req := normalizer.Request{
		Content:       data,
		Format:        file.Format,
		SourcePath:    file.Path,
		Title:         file.Title,
		JobID:         jobID,
		CorrelationID: jobID,
		Persist:       !p.cfg.DryRun,
	}
	if !file.Date.IsZero() {
		d := file.Date
		req.MeetingDate = &d
	}

	res, err := p.pipeline.Process(ctx, req)
	if err != nil {
		return outcome{status: OutcomeFailed, err: err}
	}

	if res.Duplicate {
		p.logger.Debug("Duplicate transcript skipped",
			logging.F("file", file.Path),
			logging.F("existing_id", res.TranscriptID))
		return outcome{status: OutcomeSkipped, transcriptID: res.TranscriptID}
	}

	if p.cfg.DryRun {
		p.logger.Info("Dry run: would import",
			logging.F("file", file.Path),
			logging.F("format", string(res.Transcript.Format)),
			logging.F("entries", res.Summary.EntryCount))
	}
	return outcome{status: OutcomeImported, transcriptID: res.TranscriptID}
}

// recordOutcome updates progress, the result and the job row.
func (p *Processor) recordOutcome(ctx context.Context, file meeting.TranscriptFile, o outcome, result *ProcessResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress.Record(o.status)
	p.metrics.RecordIngestFile(string(o.status))

	switch o.status {
	case OutcomeImported:
		result.ImportedCount++
	case OutcomeSkipped:
		result.SkippedCount++
	case OutcomeFailed:
		result.FailedCount++
		code := string(pferrors.ClassifyError(o.err, "ingest").Code)
		result.Errors = append(result.Errors, FileError{
			FilePath: file.Path,
			Code:     code,
			Error:    o.err.Error(),
		})
		p.logger.Warn("Transcript failed",
			logging.F("file", file.Path),
			logging.F("code", code),
			logging.Err(o.err))

		if result.JobID != "" {
			if err := p.jobs.RecordError(ctx, result.JobID, file.Path, code, o.err.Error()); err != nil {
				p.logger.Warn("Failed to record error", logging.Err(err))
			}
		}
	}

	if result.JobID != "" {
		if err := p.jobs.UpdateJobProgress(ctx, result.JobID,
			result.ImportedCount, result.SkippedCount, result.FailedCount); err != nil {
			p.logger.Warn("Failed to update job progress", logging.Err(err))
		}
	}
}
