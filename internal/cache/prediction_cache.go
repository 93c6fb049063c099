package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"discus-vision/internal/vision"
)

// PredictionCache remembers predictions by image digest so re-dropping the
// same picture skips the classifier.
type PredictionCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewPredictionCache(client *redisv9.Client, ttl time.Duration) *PredictionCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PredictionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *PredictionCache) Get(ctx context.Context, digest string) (*vision.Prediction, bool, error) {
	raw, err := c.client.Get(ctx, c.key(digest)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get prediction failed: %w", err)
	}

	var p vision.Prediction
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached prediction failed: %w", err)
	}
	return &p, true, nil
}

func (c *PredictionCache) Set(ctx context.Context, digest string, p *vision.Prediction) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(digest), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set prediction failed: %w", err)
	}
	return nil
}

func (c *PredictionCache) key(digest string) string {
	return fmt.Sprintf("discus:prediction:%s", digest)
}
