package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/inkwire/dispatch/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per test to avoid the global adapter cache
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func testConfig(name string) Config {
	return Config{
		Name:              name,
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}
}

func TestQueue_PublishAndConsume(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := New(adapter, testConfig("test:jobs"))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = q.PublishJSON(ctx, map[string]int64{"job_id": 42}, map[string]string{"reason": "scheduled"})
	require.NoError(t, err)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, msg *Message) error {
		var data map[string]int64
		err := json.Unmarshal(msg.Data, &data)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), data["job_id"])
		assert.Equal(t, "scheduled", msg.Metadata["reason"])
		received <- true
		return nil
	}

	require.NoError(t, q.Consume(handler))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	q.Stop(time.Second)
}

func TestQueue_FailedHandlerLeavesMessagePending(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := testConfig("test:jobs:retry")
	config.MaxRetries = 2
	config.VisibilityTimeout = 1 * time.Second

	q, err := New(adapter, config)
	require.NoError(t, err)
	defer q.Stop(time.Second)

	ctx := context.Background()
	_, err = q.PublishJSON(ctx, map[string]int64{"job_id": 7}, nil)
	require.NoError(t, err)

	attempts := 0
	handler := func(ctx context.Context, msg *Message) error {
		attempts++
		return assert.AnError
	}

	require.NoError(t, q.Consume(handler))

	time.Sleep(500 * time.Millisecond)
	assert.GreaterOrEqual(t, attempts, 1)

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.PendingMessages, int64(1))
}

func TestQueue_GetStats(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := New(adapter, testConfig("test:jobs:stats"))
	require.NoError(t, err)
	defer q.Stop(time.Second)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := q.PublishJSON(ctx, map[string]int{"job_id": i}, nil)
		require.NoError(t, err)
	}

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(5))
}

func TestQueue_RequiresName(t *testing.T) {
	_, adapter := setupTestRedis(t)

	_, err := New(adapter, Config{})
	assert.Error(t, err)
}

func TestQueue_ConcurrentPublish(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := New(adapter, testConfig("test:jobs:concurrent"))
	require.NoError(t, err)
	defer q.Stop(time.Second)

	ctx := context.Background()
	numGoroutines := 10
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			_, err := q.PublishJSON(ctx, map[string]int{"job_id": id}, nil)
			assert.NoError(t, err)
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(numGoroutines))
}

func TestQueue_Stop(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := New(adapter, testConfig("test:jobs:stop"))
	require.NoError(t, err)

	handler := func(ctx context.Context, msg *Message) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}

	require.NoError(t, q.Consume(handler))

	assert.NoError(t, q.Stop(2*time.Second))
}
