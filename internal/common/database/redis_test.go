package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikimind/internal/common/config"
)

func newMockRedis(t *testing.T) (*RedisClient, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return &RedisClient{Client: db}, mock
}

func TestNewRedisRequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisGet(t *testing.T) {
	ctx := context.Background()
	rc, mock := newMockRedis(t)

	mock.ExpectGet("wikimind:ctx:en:tokyo").SetVal("Tokyo is the capital of Japan.")
	mock.ExpectGet("wikimind:ctx:en:atlantis").RedisNil()
	mock.ExpectGet("wikimind:ctx:en:mercury").SetErr(errors.New("connection reset"))

	val, err := rc.Get(ctx, "wikimind:ctx:en:tokyo")
	require.NoError(t, err)
	assert.Equal(t, "Tokyo is the capital of Japan.", val)

	_, err = rc.Get(ctx, "wikimind:ctx:en:atlantis")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = rc.Get(ctx, "wikimind:ctx:en:mercury")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestRedisSet(t *testing.T) {
	rc, mock := newMockRedis(t)

	mock.ExpectSet("wikimind:ctx:en:tokyo", "Tokyo", time.Hour).SetVal("OK")
	mock.ExpectSet("wikimind:ctx:en:kyoto", "Kyoto", time.Hour).SetErr(errors.New("OOM command not allowed"))

	assert.NoError(t, rc.Set(context.Background(), "wikimind:ctx:en:tokyo", "Tokyo", time.Hour))
	assert.ErrorContains(t, rc.Set(context.Background(), "wikimind:ctx:en:kyoto", "Kyoto", time.Hour), "OOM")
}

func TestRedisPing(t *testing.T) {
	rc, mock := newMockRedis(t)

	mock.ExpectPing().SetErr(errors.New("dial tcp: refused"))

	err := rc.Ping(context.Background())
	assert.ErrorContains(t, err, "redis ping failed")
}
