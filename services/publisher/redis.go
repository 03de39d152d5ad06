package publisher

import (
	"context"

	"github.com/redis/go-redis/v9"

	werrors "sjsage522/listingwatcher/pkg/errors"
)

// StreamField is the stream entry field holding the JSON payload
const StreamField = "listing"

// RedisPublisher implements Publisher on a Redis stream
type RedisPublisher struct {
	client          *redis.Client
	stream          string
	streamMaxLength int
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, stream string, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		stream:          stream,
		streamMaxLength: streamMaxLength,
	}
}

// Ping checks the connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return werrors.NewPublisher(p.stream, "redis ping failed", err)
	}
	return nil
}

// Stream returns the stream name
func (p *RedisPublisher) Stream() string {
	return p.stream
}

// Publish appends message to the stream
func (p *RedisPublisher) Publish(ctx context.Context, message []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			StreamField: string(message),
		},
	}).Err()
	if err != nil {
		return werrors.NewPublisher(p.stream, "xadd failed", err)
	}
	return nil
}

// TrimStreams trims the stream to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	if err := p.client.XTrimMaxLen(ctx, p.stream, int64(p.streamMaxLength)).Err(); err != nil {
		return werrors.NewPublisher(p.stream, "xtrim failed", err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
