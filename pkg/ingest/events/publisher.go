package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/penf-transcripts/pkg/logging"
)

// redisClient is the part of *redis.Client the publisher uses.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// PublisherConfig holds Redis connection settings.
type PublisherConfig struct {
	Addr     string
	Password string
	DB       int
}

// Publisher sends events to Redis pub/sub.
type Publisher struct {
	client redisClient
	logger logging.Logger
	now    func() time.Time
}

// NewPublisher wraps an existing client.
func NewPublisher(client *redis.Client, logger logging.Logger) *Publisher {
	return newPublisher(client, logger)
}

func newPublisher(client redisClient, logger logging.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.With(logging.F("component", "event_publisher")),
		now:    time.Now,
	}
}

// NewPublisherFromConfig connects to Redis and fails when it does not answer
// a ping within five seconds.
func NewPublisherFromConfig(ctx context.Context, cfg PublisherConfig, logger logging.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return NewPublisher(client, logger), nil
}

// Ping backs the readiness probe.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Emit stamps ev and publishes it on its channel.
func (p *Publisher) Emit(ctx context.Context, ev Event) error {
	stamp(ev, p.now())

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.eventType(), err)
	}

	channel := ev.Channel()
	logger := p.logger.WithContext(ctx).With(logging.F("channel", channel), logging.F("event_id", ev.envelope().EventID))
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		logger.Error("Failed to publish event", logging.Err(err))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	logger.Debug("Event published", logging.F("payload_size", len(data)))
	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

var (
	_ Emitter = (*Publisher)(nil)
	_ Emitter = Nop{}
)
