package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pinger is a dependency the readiness probe can reach. *pgxpool.Pool
// satisfies it; the Redis publisher is adapted to it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// Ping calls f.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthStatus is one dependency's entry in the readiness report.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Latency       time.Duration `json:"latency_ns"`
	TotalConns    int32         `json:"total_conns,omitempty"`
	IdleConns     int32         `json:"idle_conns,omitempty"`
	AcquiredConns int32         `json:"acquired_conns,omitempty"`
	Error         error         `json:"-"`
	Message       string        `json:"error,omitempty"`
}

// CheckTimeout bounds a single readiness ping.
const CheckTimeout = 2 * time.Second

var errNilPinger = errors.New("pinger is nil")

// Check pings p within CheckTimeout. Pool connection counts are included when
// p is a *pgxpool.Pool.
func Check(ctx context.Context, p Pinger) HealthStatus {
	var hs HealthStatus
	if p == nil {
		hs.fail(errNilPinger)
		return hs
	}

	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	hs.Latency = time.Since(start)
	if err != nil {
		hs.fail(fmt.Errorf("ping failed: %w", err))
		return hs
	}
	hs.Healthy = true

	if pool, ok := p.(*pgxpool.Pool); ok {
		st := pool.Stat()
		hs.TotalConns = st.TotalConns()
		hs.IdleConns = st.IdleConns()
		hs.AcquiredConns = st.AcquiredConns()
	}
	return hs
}

func (s *HealthStatus) fail(err error) {
	s.Error = err
	s.Message = err.Error()
}
