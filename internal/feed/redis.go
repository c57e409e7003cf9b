package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/pkg/logger"
)

// Stream operations
const (
	OpUpsert = "upsert"
	OpRemove = "remove"
)

// StreamUpdate is the JSON carried in the "data" field of a stream entry
type StreamUpdate struct {
	Op     string        `json:"op,omitempty"` // upsert when empty
	Entity entity.Entity `json:"entity"`
}

// RedisStreamSource tails a Redis stream of entity updates published by
// other collectors
type RedisStreamSource struct {
	client *redis.Client
	stream string
	block  time.Duration
	count  int64
	logger *logger.Logger
}

// NewRedisStreamSource creates a stream source reading new entries only
func NewRedisStreamSource(client *redis.Client, stream string, block time.Duration, count int64, log *logger.Logger) *RedisStreamSource {
	if block <= 0 {
		block = 5 * time.Second
	}
	if count <= 0 {
		count = 100
	}
	return &RedisStreamSource{
		client: client,
		stream: stream,
		block:  block,
		count:  count,
		logger: log.Named("redis-stream"),
	}
}

func (s *RedisStreamSource) Name() string { return "redis" }

func (s *RedisStreamSource) Run(ctx context.Context, sink Sink) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	report(sink, nil)

	// "$" only delivers entries added after the first read
	lastID := "$"
	for {
		result, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.stream, lastID},
			Count:   s.count,
			Block:   s.block,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("read stream %s: %w", s.stream, err)
		}

		for _, st := range result {
			for _, msg := range st.Messages {
				lastID = msg.ID
				data, ok := msg.Values["data"].(string)
				if !ok {
					s.logger.Warn("Stream entry has no data field", logger.String("message_id", msg.ID))
					continue
				}
				if err := applyUpdate(sink, []byte(data)); err != nil {
					s.logger.Warn("Skipping stream entry",
						logger.String("message_id", msg.ID),
						logger.Error(err))
				}
			}
		}
	}
}

// applyUpdate decodes one stream payload and applies it to sink
func applyUpdate(sink Sink, data []byte) error {
	var upd StreamUpdate
	if err := json.Unmarshal(data, &upd); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}

	switch upd.Op {
	case "", OpUpsert:
		sink.Deliver(upd.Entity.Kind, upd.Entity)
	case OpRemove:
		r, ok := sink.(Remover)
		if !ok {
			return errors.New("sink does not accept removals")
		}
		r.Remove(upd.Entity.Kind, upd.Entity.ID)
	default:
		return fmt.Errorf("unknown op %q", upd.Op)
	}
	return nil
}

// PublishUpdate appends an update to the stream in the format the source reads
func PublishUpdate(ctx context.Context, client *redis.Client, stream string, upd StreamUpdate) (string, error) {
	data, err := json.Marshal(upd)
	if err != nil {
		return "", fmt.Errorf("failed to marshal update: %w", err)
	}
	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to stream: %w", err)
	}
	return id, nil
}
