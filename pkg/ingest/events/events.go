// Package events defines the transcript pipeline events and publishes them to
// Redis pub/sub channels as JSON.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Redis channels, one per event type.
const (
	ChannelTranscriptNormalized = "transcripts.normalized"
	ChannelTranscriptRejected   = "transcripts.rejected"
	ChannelIngestJobCompleted   = "ingest.job.completed"
)

const (
	eventSource   = "penf-transcripts"
	schemaVersion = "1.0"
)

// Envelope is the header shared by every event. Emit fills it in; callers
// only set CorrelationID.
type Envelope struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Source        string    `json:"source"`
	Version       string    `json:"version"`
}

// Event is a publishable payload.
type Event interface {
	Channel() string
	envelope() *Envelope
	eventType() string
}

// TranscriptNormalizedEvent announces a stored transcript. Duplicate is set
// when identical content was already stored.
type TranscriptNormalizedEvent struct {
	Envelope

	TranscriptID string   `json:"transcript_id"`
	JobID        string   `json:"job_id,omitempty"`
	SourcePath   string   `json:"source_path,omitempty"`
	Format       string   `json:"format"`
	EntryCount   int      `json:"entry_count"`
	WordCount    int      `json:"word_count"`
	Participants []string `json:"participants"`
	ContentHash  string   `json:"content_hash"`
	Duplicate    bool     `json:"duplicate"`
}

func (*TranscriptNormalizedEvent) Channel() string        { return ChannelTranscriptNormalized }
func (*TranscriptNormalizedEvent) eventType() string      { return "transcript.normalized" }
func (e *TranscriptNormalizedEvent) envelope() *Envelope { return &e.Envelope }

// TranscriptRejectedEvent announces content that failed validation.
type TranscriptRejectedEvent struct {
	Envelope

	JobID      string `json:"job_id,omitempty"`
	SourcePath string `json:"source_path,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (*TranscriptRejectedEvent) Channel() string        { return ChannelTranscriptRejected }
func (*TranscriptRejectedEvent) eventType() string      { return "transcript.rejected" }
func (e *TranscriptRejectedEvent) envelope() *Envelope { return &e.Envelope }

// IngestJobCompletedEvent summarizes a finished batch ingest job. Its
// correlation id defaults to the job id.
type IngestJobCompletedEvent struct {
	Envelope

	JobID     string `json:"job_id"`
	SourceTag string `json:"source_tag"`

	TotalFiles    int `json:"total_files"`
	ImportedCount int `json:"imported_count"`
	SkippedCount  int `json:"skipped_count"`
	FailedCount   int `json:"failed_count"`

	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	Success     bool   `json:"success"`
	FinalStatus string `json:"final_status"`
}

func (*IngestJobCompletedEvent) Channel() string        { return ChannelIngestJobCompleted }
func (*IngestJobCompletedEvent) eventType() string      { return "ingest_job.completed" }
func (e *IngestJobCompletedEvent) envelope() *Envelope { return &e.Envelope }

// Emitter publishes events. Publishing is best effort for the pipeline: a
// failed Emit is logged, never rolled back.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// stamp completes the envelope and derived fields before ev is encoded.
func stamp(ev Event, now time.Time) {
	env := ev.envelope()
	if env.EventID == "" {
		env.EventID = uuid.NewString()
	}
	env.EventType = ev.eventType()
	env.Timestamp = now.UTC()
	env.Source = eventSource
	env.Version = schemaVersion

	switch e := ev.(type) {
	case *TranscriptNormalizedEvent:
		if e.Participants == nil {
			e.Participants = []string{}
		}
	case *IngestJobCompletedEvent:
		if env.CorrelationID == "" {
			env.CorrelationID = e.JobID
		}
		if !e.StartedAt.IsZero() && !e.CompletedAt.IsZero() {
			e.DurationSeconds = e.CompletedAt.Sub(e.StartedAt).Seconds()
		}
	}
}

// Nop discards every event. It stands in when Redis is not configured.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
