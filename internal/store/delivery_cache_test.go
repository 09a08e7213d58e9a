package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryCache_Seen(t *testing.T) {
	t.Run("processed delivery is seen", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		cache := NewDeliveryCache(redisClient)

		mock.ExpectExists("webhook:event:evt_1").SetVal(1)

		assert.True(t, cache.Seen(context.Background(), "evt_1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown delivery is not seen", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		cache := NewDeliveryCache(redisClient)

		mock.ExpectExists("webhook:event:evt_2").SetVal(0)

		assert.False(t, cache.Seen(context.Background(), "evt_2"))
	})

	t.Run("lookup failure reads as unseen", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		cache := NewDeliveryCache(redisClient)

		mock.ExpectExists("webhook:event:evt_3").SetErr(errors.New("connection refused"))

		assert.False(t, cache.Seen(context.Background(), "evt_3"))
	})
}

func TestDeliveryCache_MarkProcessed(t *testing.T) {
	t.Run("records with a TTL", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		cache := NewDeliveryCache(redisClient)

		mock.Regexp().ExpectSet("webhook:event:evt_1", `.+`, 24*time.Hour).SetVal("OK")

		cache.MarkProcessed(context.Background(), "evt_1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("write failure is swallowed", func(t *testing.T) {
		redisClient, mock := redismock.NewClientMock()
		cache := NewDeliveryCache(redisClient)

		mock.Regexp().ExpectSet("webhook:event:evt_1", `.+`, 24*time.Hour).SetErr(errors.New("connection refused"))

		cache.MarkProcessed(context.Background(), "evt_1")
	})
}

func TestDeliveryCache_Disabled(t *testing.T) {
	cache := NewDeliveryCache(nil)

	assert.False(t, cache.Seen(context.Background(), "evt_1"))
	cache.MarkProcessed(context.Background(), "evt_1")

	withClient, _ := redismock.NewClientMock()
	enabled := NewDeliveryCache(withClient)
	assert.False(t, enabled.Seen(context.Background(), ""))
	enabled.MarkProcessed(context.Background(), "")
}
