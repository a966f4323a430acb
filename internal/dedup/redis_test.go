package dedup

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSuppressor(t *testing.T) {
	url := os.Getenv("TASKFUSE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TASKFUSE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := OpenRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisSuppressor(client, "taskfuse:test:"+t.Name()+":", time.Minute)
	require.NoError(t, s.Clear(ctx))

	ok, err := s.Admit(ctx, "k", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Admit(ctx, "k", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	ok, err = s.Admit(ctx, "k", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.Clear(ctx))
}

func TestNewRedisSuppressorDefaults(t *testing.T) {
	s := NewRedisSuppressor(nil, "", 0)
	assert.Equal(t, DefaultRedisPrefix, s.prefix)
	assert.Equal(t, DefaultWindow, s.window)
}
