package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-transcripts/pkg/ingest/meeting"
	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
	"github.com/otherjamesbrown/penf-transcripts/pkg/observability"
)

const vttContent = "WEBVTT\n\n<v Alice>Hello there</v>"

// collector records handled files.
type collector struct {
	mu    sync.Mutex
	files []meeting.TranscriptFile
	err   error
}

func (c *collector) handle(_ context.Context, f meeting.TranscriptFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append(c.files, f)
	return c.err
}

func (c *collector) paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, filepath.Base(f.Path))
	}
	return out
}

// start runs w in the background and returns a stop func that waits for Run.
func start(t *testing.T, w *Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	// Give the watcher time to register the tree.
	time.Sleep(100 * time.Millisecond)

	return func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	}
}

func TestWatcher_HandlesNewTranscript(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	w := New(Config{Dir: dir, Debounce: 20 * time.Millisecond}, c.handle, metrics, logging.NewNopLogger())
	stop := start(t, w)
	defer stop()

	path := filepath.Join(dir, "standup.vtt")
	require.NoError(t, os.WriteFile(path, []byte(vttContent), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644))

	assert.Eventually(t, func() bool { return len(c.paths()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"standup.vtt"}, c.paths())

	c.mu.Lock()
	assert.Equal(t, meeting.FormatVTT, c.files[0].Format)
	c.mu.Unlock()

	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.WatchEventsTotal.WithLabelValues("create")), 1.0)
}

func TestWatcher_DebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := New(Config{Dir: dir, Debounce: 150 * time.Millisecond}, c.handle, nil, logging.NewNopLogger())
	stop := start(t, w)
	defer stop()

	path := filepath.Join(dir, "meeting.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.WriteString("Alice: still talking\n")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool { return len(c.paths()) >= 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, []string{"meeting.txt"}, c.paths())
}

func TestWatcher_RescheduleAfterTimerFired(t *testing.T) {
	debounce := 20 * time.Millisecond
	w := New(Config{Dir: t.TempDir(), Debounce: debounce}, (&collector{}).handle, nil, logging.NewNopLogger())

	w.schedule("a.vtt")

	// Hold the lock so the fired callback waits while the file is rescheduled.
	w.mu.Lock()
	time.Sleep(5 * debounce)
	w.scheduleLocked("a.vtt")
	w.mu.Unlock()

	select {
	case path := <-w.ready:
		assert.Equal(t, "a.vtt", path)
	case <-time.After(2 * time.Second):
		t.Fatal("file was never ready")
	}

	select {
	case path := <-w.ready:
		t.Fatalf("%s was queued twice", path)
	case <-time.After(10 * debounce):
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.timers)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := New(Config{Dir: dir, Debounce: 20 * time.Millisecond}, c.handle, nil, logging.NewNopLogger())
	stop := start(t, w)
	defer stop()

	sub := filepath.Join(dir, "2025-01")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "sync.srt"), []byte("1\n00:00:01,000 --> 00:00:02,000\nHi"), 0o644))

	assert.Eventually(t, func() bool { return len(c.paths()) == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_ProcessExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.vtt"), []byte(vttContent), 0o644))

	c := &collector{err: errors.New("handler errors are logged")}
	w := New(Config{Dir: dir, ProcessExisting: true}, c.handle, nil, logging.NewNopLogger())
	stop := start(t, w)
	defer stop()

	assert.Eventually(t, func() bool { return len(c.paths()) == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresHiddenAndTempFiles(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := New(Config{Dir: dir, Debounce: 20 * time.Millisecond}, c.handle, nil, logging.NewNopLogger())
	stop := start(t, w)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".draft.vtt"), []byte(vttContent), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "upload.vtt.tmp"), []byte(vttContent), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, c.paths())
}

func TestWatcher_InvalidDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.vtt")
	require.NoError(t, os.WriteFile(file, []byte(vttContent), 0o644))

	w := New(Config{Dir: file}, (&collector{}).handle, nil, logging.NewNopLogger())
	assert.Error(t, w.Run(context.Background()))

	w = New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, (&collector{}).handle, nil, logging.NewNopLogger())
	assert.Error(t, w.Run(context.Background()))
}

func TestNew_DefaultDebounce(t *testing.T) {
	w := New(Config{Dir: "."}, (&collector{}).handle, nil, logging.NewNopLogger())
	assert.Equal(t, DefaultDebounce, w.cfg.Debounce)
}
