// Package storage persists normalized transcripts and batch ingest jobs in PostgreSQL.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/otherjamesbrown/penf-transcripts/pkg/contentid"
	pferrors "github.com/otherjamesbrown/penf-transcripts/pkg/errors"
	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
)

// IngestJobStatus represents the state of an ingest batch job.
type IngestJobStatus string

const (
	IngestJobStatusRunning         IngestJobStatus = "running"
	IngestJobStatusCompleted       IngestJobStatus = "completed"
	IngestJobStatusCompletedErrors IngestJobStatus = "completed_with_errors"
	IngestJobStatusFailed          IngestJobStatus = "failed"
	IngestJobStatusCancelled       IngestJobStatus = "cancelled"
)

// Terminal reports whether no further progress is expected.
func (s IngestJobStatus) Terminal() bool {
	return s != IngestJobStatusRunning
}

// Transcript is a stored normalized transcript.
type Transcript struct {
	ID           string                   `json:"id"`
	ContentHash  string                   `json:"content_hash"`
	SourcePath   string                   `json:"source_path,omitempty"`
	Title        string                   `json:"title,omitempty"`
	MeetingDate  *time.Time               `json:"meeting_date,omitempty"`
	Format       meeting.TranscriptFormat `json:"format"`
	Encoding     string                   `json:"encoding"`
	RawText      string                   `json:"raw_text"`
	Entries      []meeting.ParsedEntry    `json:"entries"`
	Participants []string                 `json:"participants"`
	EntryCount   int                      `json:"entry_count"`
	WordCount    int                      `json:"word_count"`
	CreatedAt    time.Time                `json:"created_at"`
}

// TranscriptSummary is the list view of a stored transcript.
type TranscriptSummary struct {
	ID           string                   `json:"id"`
	Title        string                   `json:"title,omitempty"`
	SourcePath   string                   `json:"source_path,omitempty"`
	Format       meeting.TranscriptFormat `json:"format"`
	Participants []string                 `json:"participants"`
	EntryCount   int                      `json:"entry_count"`
	WordCount    int                      `json:"word_count"`
	CreatedAt    time.Time                `json:"created_at"`
}

// ListOptions filters ListTranscripts.
type ListOptions struct {
	Format meeting.TranscriptFormat
	Limit  int
	Offset int
}

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 50

// IngestJob tracks a batch ingest operation.
type IngestJob struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Status      IngestJobStatus `json:"status"`
	TotalFiles  int             `json:"total_files"`
	Imported    int             `json:"imported"`
	Skipped     int             `json:"skipped"`
	Failed      int             `json:"failed"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// IngestError records a failure for one file of a job.
type IngestError struct {
	JobID     string    `json:"job_id"`
	FilePath  string    `json:"file_path"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// querier is the subset of *pgxpool.Pool used by the repository.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository provides database operations for transcripts and ingest jobs.
type Repository struct {
	db     querier
	logger logging.Logger
}

// NewRepository creates a repository over a pgx pool or transaction.
func NewRepository(db querier, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With(logging.F("component", "transcript_repository")),
	}
}

// HashContent returns the hex SHA-256 of content, the deduplication key.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

const transcriptColumns = `
	id, content_hash, source_path, title, meeting_date, format, encoding,
	raw_text, entries, participants, entry_count, word_count, created_at`

// SaveTranscript inserts t. When a transcript with the same content hash exists,
// nothing is written and the stored row is returned with created=false.
func (r *Repository) SaveTranscript(ctx context.Context, t *Transcript) (stored *Transcript, created bool, err error) {
	if t.ContentHash == "" {
		t.ContentHash = HashContent(t.RawText)
	}
	if t.ID == "" {
		t.ID = contentid.NewTranscript()
	}
	if t.Entries == nil {
		t.Entries = []meeting.ParsedEntry{}
	}
	if t.Participants == nil {
		t.Participants = []string{}
	}
	if t.Encoding == "" {
		t.Encoding = "utf-8"
	}

	entriesJSON, err := json.Marshal(t.Entries)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal entries: %w", err)
	}

	query := `
		INSERT INTO transcripts (
			id, content_hash, source_path, title, meeting_date, format, encoding,
			raw_text, entries, participants, entry_count, word_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING created_at
	`

	err = r.db.QueryRow(ctx, query,
		t.ID,
		t.ContentHash,
		t.SourcePath,
		t.Title,
		t.MeetingDate,
		string(t.Format),
		t.Encoding,
		t.RawText,
		entriesJSON,
		t.Participants,
		t.EntryCount,
		t.WordCount,
	).Scan(&t.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		existing, found, findErr := r.FindByContentHash(ctx, t.ContentHash)
		if findErr != nil {
			return nil, false, findErr
		}
		if !found {
			return nil, false, fmt.Errorf("transcript with hash %s vanished after conflict: %w", t.ContentHash, pferrors.ErrConflict)
		}
		r.logger.Debug("Duplicate transcript skipped",
			logging.F("transcript_id", existing.ID),
			logging.F("content_hash", t.ContentHash))
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to save transcript: %w", err)
	}

	r.logger.Debug("Transcript saved",
		logging.F("transcript_id", t.ID),
		logging.F("format", string(t.Format)),
		logging.F("entries", t.EntryCount))

	return t, true, nil
}

// GetTranscript loads a transcript by id. A missing row wraps pferrors.ErrNotFound.
func (r *Repository) GetTranscript(ctx context.Context, id string) (*Transcript, error) {
	query := `SELECT ` + transcriptColumns + ` FROM transcripts WHERE id = $1`

	t, err := scanTranscript(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transcript %s: %w", id, pferrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return t, nil
}

// FindByContentHash looks up a transcript by content hash.
func (r *Repository) FindByContentHash(ctx context.Context, hash string) (*Transcript, bool, error) {
	query := `SELECT ` + transcriptColumns + ` FROM transcripts WHERE content_hash = $1`

	t, err := scanTranscript(r.db.QueryRow(ctx, query, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to check existence by content_hash: %w", err)
	}
	return t, true, nil
}

func scanTranscript(row pgx.Row) (*Transcript, error) {
	t := &Transcript{}
	var format string
	var entriesJSON []byte
	err := row.Scan(
		&t.ID,
		&t.ContentHash,
		&t.SourcePath,
		&t.Title,
		&t.MeetingDate,
		&format,
		&t.Encoding,
		&t.RawText,
		&entriesJSON,
		&t.Participants,
		&t.EntryCount,
		&t.WordCount,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Format = meeting.TranscriptFormat(format)
	if err := json.Unmarshal(entriesJSON, &t.Entries); err != nil || t.Entries == nil {
		t.Entries = []meeting.ParsedEntry{}
	}
	if t.Participants == nil {
		t.Participants = []string{}
	}
	return t, nil
}

// ListTranscripts returns stored transcripts, newest first.
func (r *Repository) ListTranscripts(ctx context.Context, opts ListOptions) ([]TranscriptSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, title, source_path, format, participants, entry_count, word_count, created_at
		FROM transcripts
		WHERE ($1 = '' OR format = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, string(opts.Format), limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	summaries := []TranscriptSummary{}
	for rows.Next() {
		var s TranscriptSummary
		var format string
		if err := rows.Scan(&s.ID, &s.Title, &s.SourcePath, &format, &s.Participants, &s.EntryCount, &s.WordCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		s.Format = meeting.TranscriptFormat(format)
		if s.Participants == nil {
			s.Participants = []string{}
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// CreateJob creates a new ingest job record. An empty ID is filled in.
func (r *Repository) CreateJob(ctx context.Context, job *IngestJob) error {
	if job.ID == "" {
		job.ID = contentid.NewJob()
	}
	if job.Status == "" {
		job.Status = IngestJobStatusRunning
	}

	query := `
		INSERT INTO ingest_jobs (id, source, status, total_files, started_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING started_at
	`

	err := r.db.QueryRow(ctx, query, job.ID, job.Source, string(job.Status), job.TotalFiles).Scan(&job.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	r.logger.Debug("Ingest job created",
		logging.F("job_id", job.ID),
		logging.F("total_files", job.TotalFiles))

	return nil
}

// GetJob retrieves an ingest job by ID.
func (r *Repository) GetJob(ctx context.Context, jobID string) (*IngestJob, error) {
	query := `
		SELECT id, source, status, total_files, imported, skipped, failed, started_at, completed_at
		FROM ingest_jobs
		WHERE id = $1
	`

	job := &IngestJob{}
	var status string
	err := r.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&job.Source,
		&status,
		&job.TotalFiles,
		&job.Imported,
		&job.Skipped,
		&job.Failed,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, pferrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job.Status = IngestJobStatus(status)

	return job, nil
}

// UpdateJobProgress stores the running counters of a job.
func (r *Repository) UpdateJobProgress(ctx context.Context, jobID string, imported, skipped, failed int) error {
	query := `
		UPDATE ingest_jobs
		SET imported = $2, skipped = $3, failed = $4
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, jobID, imported, skipped, failed)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, pferrors.ErrNotFound)
	}

	return nil
}

// CompleteJob marks an ingest job as finished with the given status.
func (r *Repository) CompleteJob(ctx context.Context, jobID string, status IngestJobStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot complete job with status %s: %w", status, pferrors.ErrInvalidState)
	}

	query := `
		UPDATE ingest_jobs
		SET status = $2, completed_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, jobID, string(status))
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, pferrors.ErrNotFound)
	}

	r.logger.Debug("Job completed",
		logging.F("job_id", jobID),
		logging.F("status", string(status)))

	return nil
}

// RecordError records a per-file failure of a job.
func (r *Repository) RecordError(ctx context.Context, jobID, filePath, code, message string) error {
	query := `
		INSERT INTO ingest_errors (job_id, file_path, code, message)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.Exec(ctx, query, jobID, filePath, code, message); err != nil {
		return fmt.Errorf("failed to record error: %w", err)
	}

	return nil
}

// GetJobErrors retrieves all errors recorded for a job, oldest first.
func (r *Repository) GetJobErrors(ctx context.Context, jobID string) ([]IngestError, error) {
	query := `
		SELECT job_id, file_path, code, message, created_at
		FROM ingest_errors
		WHERE job_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job errors: %w", err)
	}
	defer rows.Close()

	var out []IngestError
	for rows.Next() {
		var e IngestError
		if err := rows.Scan(&e.JobID, &e.FilePath, &e.Code, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job error: %w", err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}
