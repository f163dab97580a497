package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	_, err := c.Get(ctx, "k")
	assert.True(t, IsMiss(err))

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	ok, err := c.SetNX(ctx, "k", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Del(ctx, "k"))
	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClient_NilIsNoop(t *testing.T) {
	var c *Client
	ctx := context.Background()
	assert.Nil(t, New("", "", 0))
	assert.False(t, c.Enabled())
	assert.NoError(t, c.Set(ctx, "k", "v", time.Second))
	_, err := c.Get(ctx, "k")
	assert.True(t, IsMiss(err))
	ok, err := c.SetNX(ctx, "lock", "1", time.Second)
	assert.NoError(t, err)
	assert.True(t, ok)
}
