package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	renderQueueKey = "render:jobs"
	dedupKeyPrefix = "render:dispatch:"
	dedupTTL       = 24 * time.Hour

	// Dial failures must surface fast so the dispatch cascade can move on.
	dialTimeout = 2 * time.Second
)

// RedisClient sends render messages to a Redis-backed queue keyed by job id.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient constructs a Redis-backed queue client from a redis:// URL.
func NewRedisClient(redisURL string) (*RedisClient, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = dialTimeout
	opts.WriteTimeout = dialTimeout
	return &RedisClient{client: redis.NewClient(opts)}, nil
}

// Send enqueues a message, de-duplicating on job id: a second enqueue for the
// same job within the dedup window is a no-op.
func (r *RedisClient) Send(ctx context.Context, msg Message) error {
	if msg.JobID == "" {
		return errors.New("jobId is required")
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode queue message: %w", err)
	}

	set, err := r.client.SetNX(ctx, dedupKeyPrefix+msg.JobID, "1", dedupTTL).Result()
	if err != nil {
		return fmt.Errorf("queue dedup check: %w", err)
	}
	if !set {
		return nil
	}

	if err := r.client.LPush(ctx, renderQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("queue push: %w", err)
	}
	return nil
}

// Receive blocks up to the given timeout for the next raw payload. It returns
// ok=false when the queue was empty for the whole wait. Decoding and
// validation are the consumer's job.
func (r *RedisClient) Receive(ctx context.Context, timeout time.Duration) (string, bool, error) {
	res, err := r.client.BRPop(ctx, timeout, renderQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if len(res) < 2 {
		return "", false, fmt.Errorf("unexpected brpop reply length %d", len(res))
	}
	body := res[1]
	// Release the dedup key so the job can be re-dispatched if processing
	// fails downstream.
	if msg, err := DecodeMessage([]byte(body)); err == nil && msg.JobID != "" {
		r.client.Del(ctx, dedupKeyPrefix+msg.JobID)
	}
	return body, true, nil
}

// Close releases the underlying connection pool.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

var _ Client = (*RedisClient)(nil)
