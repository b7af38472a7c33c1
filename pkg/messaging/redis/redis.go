package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/blockpreventer/bridge/pkg/circuitbreaker"
	"github.com/blockpreventer/bridge/pkg/messaging"
)

// subscriberBuffer bounds how far a slow dashboard consumer may lag before
// alert events are dropped.
const subscriberBuffer = 100

// RedisBroker publishes engine events over redis pub/sub. Publishing is
// fire-and-forget behind a circuit breaker: a down redis must never stall a
// send or a block-detection pass.
type RedisBroker struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zerolog.Logger
}

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

func NewRedisBroker(config Config, logger *zerolog.Logger) (messaging.Broker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBroker{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-broker",
			MaxFailures: 5,
			Timeout:     5 * time.Second,
		}),
		logger: logger,
	}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.cb.Execute(func() error {
		return b.client.Publish(ctx, channel, payload).Err()
	})
}

// Subscribe streams raw event payloads until ctx is cancelled. Events that
// arrive while the buffer is full are dropped and counted in the log.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, channel)
	out := make(chan []byte, subscriberBuffer)

	go func() {
		defer func() {
			pubsub.Close()
			close(out)
		}()
		dropped := 0
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			select {
			case out <- []byte(msg.Payload):
			default:
				dropped++
				if b.logger != nil && dropped%subscriberBuffer == 1 {
					b.logger.Warn().
						Str("channel", channel).
						Int("dropped", dropped).
						Msg("slow subscriber dropping events")
				}
			}
		}
	}()

	return out, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
