package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
)

type published struct {
	channel string
	payload []byte
}

type fakeRedis struct {
	sent    []published
	err     error
	pingErr error
	closed  bool
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.sent = append(f.sent, published{channel: channel, payload: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.pingErr != nil {
		cmd.SetErr(f.pingErr)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

var fixedNow = time.Date(2025, 3, 4, 9, 30, 0, 0, time.FixedZone("CET", 3600))

func testPublisher(fake *fakeRedis) *Publisher {
	p := newPublisher(fake, logging.NewNopLogger())
	p.now = func() time.Time { return fixedNow }
	return p
}

// decode unmarshals the only published payload into v and returns its channel.
func decode(t *testing.T, fake *fakeRedis, v interface{}) string {
	t.Helper()
	require.Len(t, fake.sent, 1)
	require.NoError(t, json.Unmarshal(fake.sent[0].payload, v))
	return fake.sent[0].channel
}

func TestEmit_Normalized(t *testing.T) {
	fake := &fakeRedis{}
	p := testPublisher(fake)

	err := p.Emit(context.Background(), &TranscriptNormalizedEvent{
		Envelope:     Envelope{CorrelationID: "req-7"},
		TranscriptID: "tr-00000000",
		Format:       "vtt",
		EntryCount:   2,
		WordCount:    9,
		ContentHash:  "abc",
	})
	require.NoError(t, err)

	var ev TranscriptNormalizedEvent
	assert.Equal(t, ChannelTranscriptNormalized, decode(t, fake, &ev))
	assert.Equal(t, "transcript.normalized", ev.EventType)
	assert.Equal(t, "penf-transcripts", ev.Source)
	assert.Equal(t, "1.0", ev.Version)
	assert.Equal(t, "req-7", ev.CorrelationID)
	assert.True(t, ev.Timestamp.Equal(fixedNow))
	assert.Equal(t, time.UTC, ev.Timestamp.Location())
	_, err = uuid.Parse(ev.EventID)
	assert.NoError(t, err)

	assert.Equal(t, "tr-00000000", ev.TranscriptID)
	assert.Equal(t, 2, ev.EntryCount)
	assert.NotNil(t, ev.Participants, "participants serialize as an empty list")
	assert.Contains(t, string(fake.sent[0].payload), `"participants":[]`)
}

func TestEmit_Rejected(t *testing.T) {
	fake := &fakeRedis{}
	p := testPublisher(fake)

	require.NoError(t, p.Emit(context.Background(), &TranscriptRejectedEvent{
		SourcePath: "/in/empty.txt",
		Code:       "too_short",
		Message:    "Transcript too short",
	}))

	var ev TranscriptRejectedEvent
	assert.Equal(t, ChannelTranscriptRejected, decode(t, fake, &ev))
	assert.Equal(t, "transcript.rejected", ev.EventType)
	assert.Equal(t, "too_short", ev.Code)
	assert.Equal(t, "/in/empty.txt", ev.SourcePath)
	assert.NotContains(t, string(fake.sent[0].payload), "correlation_id")
}

func TestEmit_JobCompleted(t *testing.T) {
	fake := &fakeRedis{}
	p := testPublisher(fake)

	start := time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)
	require.NoError(t, p.Emit(context.Background(), &IngestJobCompletedEvent{
		JobID:         "jb-00000000",
		TotalFiles:    3,
		ImportedCount: 2,
		FailedCount:   1,
		StartedAt:     start,
		CompletedAt:   start.Add(90 * time.Second),
		FinalStatus:   "completed_with_errors",
	}))

	var ev IngestJobCompletedEvent
	assert.Equal(t, ChannelIngestJobCompleted, decode(t, fake, &ev))
	assert.Equal(t, 90.0, ev.DurationSeconds)
	assert.Equal(t, 3, ev.TotalFiles)
	assert.Equal(t, "jb-00000000", ev.CorrelationID, "correlation defaults to the job id")
}

func TestEmit_KeepsExplicitIDs(t *testing.T) {
	fake := &fakeRedis{}
	p := testPublisher(fake)

	ev := &IngestJobCompletedEvent{Envelope: Envelope{EventID: "ev-1", CorrelationID: "req-9"}, JobID: "jb-1"}
	require.NoError(t, p.Emit(context.Background(), ev))
	assert.Equal(t, "ev-1", ev.EventID)
	assert.Equal(t, "req-9", ev.CorrelationID)
	assert.Zero(t, ev.DurationSeconds, "no duration without both timestamps")
}

func TestEmit_Error(t *testing.T) {
	fake := &fakeRedis{err: errors.New("connection refused")}
	p := testPublisher(fake)

	err := p.Emit(context.Background(), &TranscriptRejectedEvent{Code: "likely_binary"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ChannelTranscriptRejected)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPublisher_PingAndClose(t *testing.T) {
	fake := &fakeRedis{}
	p := testPublisher(fake)
	assert.NoError(t, p.Ping(context.Background()))

	fake.pingErr = errors.New("i/o timeout")
	assert.EqualError(t, p.Ping(context.Background()), "i/o timeout")

	require.NoError(t, p.Close())
	assert.True(t, fake.closed)
}

func TestNop(t *testing.T) {
	var e Emitter = Nop{}
	ctx := context.Background()
	assert.NoError(t, e.Emit(ctx, &TranscriptNormalizedEvent{}))
	assert.NoError(t, e.Emit(ctx, &IngestJobCompletedEvent{}))
}
