package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discus-vision/internal/vision"
)

func newTestCache(t *testing.T, ttl time.Duration) (*PredictionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPredictionCache(client, ttl), mr
}

func TestPredictionCacheKey(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	assert.Equal(t, "discus:prediction:abc123", c.key("abc123"))
	assert.Equal(t, time.Minute, c.ttl)
}

func TestPredictionCacheDefaultTTL(t *testing.T) {
	c, _ := newTestCache(t, 0)

	assert.Equal(t, 10*time.Minute, c.ttl)
}

func TestPredictionCacheMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	p, ok, err := c.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestPredictionCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 90*time.Second)

	want := &vision.Prediction{
		PredictedClass: "Cobalt",
		Confidence:     "90.40%",
		Description:    "Deep blue body.",
	}
	require.NoError(t, c.Set(ctx, "d1", want))
	assert.Equal(t, 90*time.Second, mr.TTL("discus:prediction:d1"))

	got, ok, err := c.Get(ctx, "d1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(91 * time.Second)
	got, ok, err = c.Get(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestPredictionCacheCorruptValue(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	require.NoError(t, mr.Set("discus:prediction:bad", "not json"))

	_, ok, err := c.Get(context.Background(), "bad")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "unmarshal cached prediction failed")
}

func TestPredictionCacheServerDown(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	_, ok, err := c.Get(context.Background(), "d1")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "redis get prediction failed")
}
