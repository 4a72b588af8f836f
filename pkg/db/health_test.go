package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	ok := Check(context.Background(), PingerFunc(func(context.Context) error { return nil }))
	assert.True(t, ok.Healthy)
	assert.Empty(t, ok.Message)
	assert.Zero(t, ok.TotalConns)

	bad := Check(context.Background(), PingerFunc(func(context.Context) error { return errors.New("connection refused") }))
	assert.False(t, bad.Healthy)
	assert.Equal(t, "ping failed: connection refused", bad.Message)
	assert.Error(t, bad.Error)

	none := Check(context.Background(), nil)
	assert.False(t, none.Healthy)
	assert.Equal(t, "pinger is nil", none.Message)
}

func TestCheck_BoundsSlowPing(t *testing.T) {
	var deadline time.Time
	hs := Check(context.Background(), PingerFunc(func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}))

	assert.True(t, hs.Healthy)
	assert.WithinDuration(t, time.Now().Add(CheckTimeout), deadline, time.Second)
}

func TestCheck_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hs := Check(ctx, PingerFunc(func(ctx context.Context) error { return ctx.Err() }))

	assert.False(t, hs.Healthy)
	assert.ErrorIs(t, hs.Error, context.Canceled)
}
