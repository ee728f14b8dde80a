package save

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBackend stores records as plain string keys.
type RedisBackend struct {
	client *redis.Client
	logger *zap.Logger
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps an existing client. Close closes the client.
func NewRedisBackend(client *redis.Client, logger *zap.Logger) *RedisBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBackend{client: client, logger: logger.Named("RedisBackend")}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	return data, true, nil
}

// Write wraps the batch in MULTI/EXEC.
func (r *RedisBackend) Write(ctx context.Context, batch Batch) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, rec := range batch.Puts {
			pipe.Set(ctx, rec.Key, rec.Value, 0)
		}
		if len(batch.Deletes) > 0 {
			pipe.Del(ctx, batch.Deletes...)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to execute save pipeline",
			zap.Int("puts", len(batch.Puts)),
			zap.Int("deletes", len(batch.Deletes)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to write batch to redis: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
