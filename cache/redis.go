package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// deleteBatchSize bounds each UNLINK issued during pattern deletion so a
// large scope cannot stall the backend.
const deleteBatchSize = 25

// RedisConfig is the connection surface for the Redis store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	OpTimeout time.Duration
}

// Redis is a Redis-backed Store. Reads fail soft: when Redis is
// unreachable or slow, Get reports a miss instead of surfacing the error
// to the caller. Writes and deletions log their failures and return them
// so callers can treat them as best-effort.
type Redis struct {
	rdb     *redis.Client
	timeout time.Duration
	logger  *zap.Logger
	metrics *Metrics
}

// NewRedis creates a Redis store. The constructor does not dial; use
// Ping to verify connectivity and Close to release the pool.
func NewRedis(cfg RedisConfig, logger *zap.Logger, metrics *Metrics) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	return &Redis{rdb: rdb, timeout: timeout, logger: logger, metrics: metrics}
}

func (r *Redis) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// Get retrieves a value by key. Backend failures and timeouts are
// reported as a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	val, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache get degraded, treating as miss",
				zap.String("key", key), zap.Error(err))
			r.metrics.Error("get")
		}
		r.metrics.Miss()
		return nil, false, nil
	}
	r.metrics.Hit()
	return val, true, nil
}

// Set stores a value with the given TTL. TTLs below one second are
// rejected so an entry can never be written without an expiry.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < time.Second {
		return fmt.Errorf("cache: ttl %v below 1s for key %s", ttl, key)
	}
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		r.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		r.metrics.Error("set")
		return err
	}
	return nil
}

// Delete removes a single entry. Absent keys are a no-op.
func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		r.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		r.metrics.Error("delete")
		return err
	}
	return nil
}

// DeletePattern removes every key with the given prefix using SCAN and
// batched UNLINK. A failed batch is logged and skipped; the remaining
// batches are still attempted.
func (r *Redis) DeletePattern(ctx context.Context, prefix string) (int, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var (
		deleted  int
		batch    []string
		firstErr error
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := r.rdb.Unlink(ctx, batch...).Result()
		if err != nil {
			r.logger.Warn("cache pattern delete batch failed",
				zap.String("prefix", prefix), zap.Int("batch", len(batch)), zap.Error(err))
			r.metrics.Error("delete_pattern")
			if firstErr == nil {
				firstErr = err
			}
		} else {
			deleted += int(n)
		}
		batch = batch[:0]
	}

	iter := r.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= deleteBatchSize {
			flush()
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("cache pattern scan failed",
			zap.String("prefix", prefix), zap.Error(err))
		r.metrics.Error("delete_pattern")
		if firstErr == nil {
			firstErr = err
		}
	}
	flush()
	return deleted, firstErr
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	return r.rdb.Ping(ctx).Err()
}

// Stats reports connectivity, backend memory usage and the process-local
// hit/miss counters.
func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	hits, misses := r.metrics.Counts()
	s := Stats{Hits: hits, Misses: misses, HitRate: hitRate(hits, misses)}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return s, nil
	}
	s.Connected = true

	if info, err := r.rdb.Info(ctx, "memory").Result(); err == nil {
		s.UsedMemory = infoField(info, "used_memory_human")
	}
	if n, err := r.rdb.DBSize(ctx).Result(); err == nil {
		s.Keys = n
	}
	return s, nil
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// infoField extracts one field from an INFO response.
func infoField(info, field string) string {
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, field+":"); ok {
			return v
		}
	}
	return ""
}
