package batch

import (
	"fmt"
	"sync"
	"time"
)

// Outcome is the result of processing one file.
type Outcome string

const (
	OutcomeImported Outcome = "imported"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Progress states
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Progress tracks a running batch ingest. It is safe for concurrent use.
type Progress struct {
	mu sync.RWMutex

	totalFiles int
	imported   int
	skipped    int
	failed     int

	currentFile string
	status      string

	startedAt time.Time
	updatedAt time.Time

	onUpdate func(ProgressSnapshot)
}

// NewProgress creates a new progress tracker.
func NewProgress(totalFiles int) *Progress {
	now := time.Now()
	return &Progress{
		totalFiles: totalFiles,
		status:     StatusPending,
		startedAt:  now,
		updatedAt:  now,
	}
}

// SetOnUpdate sets a callback invoked asynchronously after every change.
func (p *Progress) SetOnUpdate(fn func(ProgressSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

// Start marks the progress as running.
func (p *Progress) Start() {
	p.update(func() {
		p.status = StatusRunning
		p.startedAt = time.Now()
	})
}

// SetCurrentFile records the file being processed.
func (p *Progress) SetCurrentFile(path string) {
	p.update(func() { p.currentFile = path })
}

// Record counts one processed file.
func (p *Progress) Record(o Outcome) {
	p.update(func() {
		switch o {
		case OutcomeImported:
			p.imported++
		case OutcomeSkipped:
			p.skipped++
		default:
			p.failed++
		}
	})
}

// Complete marks the run as finished.
func (p *Progress) Complete(success bool) {
	p.update(func() {
		p.status = StatusCompleted
		if !success {
			p.status = StatusFailed
		}
	})
}

// Cancel marks the run as cancelled.
func (p *Progress) Cancel() {
	p.update(func() { p.status = StatusCancelled })
}

func (p *Progress) update(fn func()) {
	p.mu.Lock()
	fn()
	p.updatedAt = time.Now()
	cb := p.onUpdate
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if cb != nil {
		go cb(snap)
	}
}

// Snapshot returns a copy of the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() ProgressSnapshot {
	processed := p.imported + p.skipped + p.failed
	elapsed := time.Since(p.startedAt).Seconds()

	var remaining *float64
	if processed > 0 {
		est := elapsed / float64(processed) * float64(p.totalFiles-processed)
		remaining = &est
	}

	return ProgressSnapshot{
		TotalFiles:                p.totalFiles,
		ProcessedCount:            processed,
		ImportedCount:             p.imported,
		SkippedCount:              p.skipped,
		FailedCount:               p.failed,
		CurrentFile:               p.currentFile,
		Status:                    p.status,
		StartedAt:                 p.startedAt,
		ElapsedSeconds:            elapsed,
		EstimatedRemainingSeconds: remaining,
	}
}

// ProgressSnapshot is an immutable view of progress state.
type ProgressSnapshot struct {
	TotalFiles                int       `json:"total_files"`
	ProcessedCount            int       `json:"processed"`
	ImportedCount             int       `json:"imported"`
	SkippedCount              int       `json:"skipped"`
	FailedCount               int       `json:"failed"`
	CurrentFile               string    `json:"current_file,omitempty"`
	Status                    string    `json:"status"`
	StartedAt                 time.Time `json:"started_at"`
	ElapsedSeconds            float64   `json:"elapsed_seconds"`
	EstimatedRemainingSeconds *float64  `json:"estimated_remaining_seconds,omitempty"`
}

// PercentComplete returns the percentage of files processed.
func (s ProgressSnapshot) PercentComplete() float64 {
	if s.TotalFiles == 0 {
		return 0
	}
	return float64(s.ProcessedCount) / float64(s.TotalFiles) * 100
}

// IsComplete reports whether every file has been processed.
func (s ProgressSnapshot) IsComplete() bool {
	return s.ProcessedCount >= s.TotalFiles
}

// IsSuccess reports whether the run completed without failures.
func (s ProgressSnapshot) IsSuccess() bool {
	return s.Status == StatusCompleted && s.FailedCount == 0
}

// String renders a one-line progress report.
func (s ProgressSnapshot) String() string {
	return fmt.Sprintf("%d/%d (%.0f%%) imported=%d skipped=%d failed=%d",
		s.ProcessedCount, s.TotalFiles, s.PercentComplete(),
		s.ImportedCount, s.SkippedCount, s.FailedCount)
}
