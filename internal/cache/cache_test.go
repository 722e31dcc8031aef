package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilCache(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var dst map[string]string
	assert.False(t, c.Get(ctx, "k", &dst))
	c.Set(ctx, "k", map[string]string{"a": "b"}, time.Minute)
	c.Delete(ctx, "k")
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestConnect_NoAddress(t *testing.T) {
	assert.Nil(t, Connect(context.Background(), Options{}, nil))
}

func TestConnect_Unreachable(t *testing.T) {
	c := Connect(context.Background(), Options{Addr: "127.0.0.1:1"}, nil)
	assert.Nil(t, c)
}
