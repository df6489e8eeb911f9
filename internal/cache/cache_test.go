package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, ttl), mr
}

func TestGetSet(t *testing.T) {
	c, mr := setupCache(t, time.Hour)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "vocmax:sim:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "vocmax:sim:a", []byte(`{"run_id":"x"}`)))
	got, ok, err := c.Get(ctx, "vocmax:sim:a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"run_id":"x"}`, string(got))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "vocmax:sim:a")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after the TTL")
}

func TestGetServerDown(t *testing.T) {
	c, mr := setupCache(t, time.Hour)
	mr.Close()

	_, ok, err := c.Get(context.Background(), "vocmax:sim:a")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNilCache(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "k", []byte("v")))
	_, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Close())
}

func TestKey(t *testing.T) {
	type req struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	a, err := Key(req{1, 2})
	require.NoError(t, err)
	b, err := Key(req{1, 2})
	require.NoError(t, err)
	c, err := Key(req{1, 3})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, keyPrefix))

	_, err = Key(make(chan int))
	assert.Error(t, err)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := Dial(context.Background(), mr.Addr(), "", 0, 0)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, DefaultTTL, c.ttl)

	addr := mr.Addr()
	mr.Close()
	_, err = Dial(context.Background(), addr, "", 0, 0)
	assert.Error(t, err)
}
