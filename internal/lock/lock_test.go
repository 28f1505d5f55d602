package lock

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/billflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLockerIsNotConfigured(t *testing.T) {
	var l *Locker

	_, ok, err := l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, l.Renew(context.Background(), "k", "t", time.Second), ErrNotConfigured)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))
}

func TestNewLockerNilClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
}

func TestTryLockValidatesBeforeNetwork(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	l := NewLocker(client)

	_, _, err := l.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, _, err = l.TryLock(context.Background(), "projection", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestNewClientDisabledWithoutAddr(t *testing.T) {
	client := NewClient(nil, config.Config{})
	assert.Nil(t, client)

	client = NewClient(nil, config.Config{Redis: config.RedisConfig{Addr: "127.0.0.1:6379"}})
	require.NotNil(t, client)
	_ = client.Close()
}
