package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	client, err := NewClient(ctx, Config{
		URL:         "redis://" + s.Addr(),
		PoolSize:    4,
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, 4, client.Options().PoolSize)
	assert.Equal(t, time.Second, client.Options().DialTimeout)
	assert.NoError(t, Ping(client)(ctx))
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), Config{URL: "://bad-url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestNewClient_ServerDown(t *testing.T) {
	s := miniredis.RunT(t)
	url := "redis://" + s.Addr()
	s.Close()

	_, err := NewClient(context.Background(), Config{URL: url, DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
