package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the small slice of Redis the caches need. A nil *Client is a
// valid "no cache" value; every method then reports a miss or does nothing.
type Client struct{ Rdb *redis.Client }

func New(addr string, password string, db int) *Client {
	if addr == "" {
		return nil
	}
	return &Client{Rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

// IsMiss reports whether err means the key does not exist.
func IsMiss(err error) bool { return errors.Is(err, redis.Nil) }

func (c *Client) Enabled() bool { return c != nil && c.Rdb != nil }

func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.Rdb.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if !c.Enabled() {
		return "", redis.Nil
	}
	return c.Rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, val string, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	return c.Rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.Rdb.Del(ctx, keys...).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	n, err := c.Rdb.Exists(ctx, key).Result()
	return n == 1, err
}

func (c *Client) SetNX(ctx context.Context, key string, val string, ttl time.Duration) (bool, error) {
	if !c.Enabled() {
		return true, nil
	}
	return c.Rdb.SetNX(ctx, key, val, ttl).Result()
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.Rdb.Close()
}
