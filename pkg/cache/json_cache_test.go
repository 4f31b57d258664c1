package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Total int     `json:"total"`
	Rate  float64 `json:"rate"`
}

func TestJSONCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewJSONCache(client, "churnshield:test:")
	ctx := context.Background()

	var got payload
	assert.ErrorIs(t, c.Get(ctx, "stats", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "stats", payload{Total: 7043, Rate: 26.5}, time.Minute))
	assert.True(t, mr.Exists("churnshield:test:stats"))
	require.NoError(t, c.Get(ctx, "stats", &got))
	assert.Equal(t, payload{Total: 7043, Rate: 26.5}, got)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "stats", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "stats", payload{Total: 1}, time.Minute))
	require.NoError(t, c.Delete(ctx, "stats"))
	assert.ErrorIs(t, c.Get(ctx, "stats", &got), ErrMiss)
}

func TestNew_PingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, closer, err := New(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer closer()
	assert.NoError(t, client.Ping(context.Background()).Err())

	mr.Close()
	_, _, err = New(context.Background(), Config{Addr: mr.Addr(), DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	assert.Error(t, err)
}
