package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryCacheTTL = 7 * 24 * time.Hour

// RedisSummarySink keeps a denormalized copy of completed summaries in Redis,
// keyed by owner and source URL, so clients can show the last known summary
// without loading the full job.
type RedisSummarySink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSummarySink constructs a sink from a redis:// URL.
func NewRedisSummarySink(redisURL string) (*RedisSummarySink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisSummarySink{client: redis.NewClient(opts), ttl: summaryCacheTTL}, nil
}

// CacheSummary stores the summary under the owner/source key.
func (s *RedisSummarySink) CacheSummary(ctx context.Context, ownerID, sourceURL, summary string) error {
	return s.client.Set(ctx, summaryKey(ownerID, sourceURL), summary, s.ttl).Err()
}

// CachedSummary returns the stored summary, if any.
func (s *RedisSummarySink) CachedSummary(ctx context.Context, ownerID, sourceURL string) (string, bool, error) {
	val, err := s.client.Get(ctx, summaryKey(ownerID, sourceURL)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Close releases the underlying connection pool.
func (s *RedisSummarySink) Close() error {
	return s.client.Close()
}

func summaryKey(ownerID, sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return "summary:" + ownerID + ":" + hex.EncodeToString(sum[:8])
}

var _ SummarySink = (*RedisSummarySink)(nil)
