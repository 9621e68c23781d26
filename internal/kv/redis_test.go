package kv

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "benki:"), mr
}

func TestRedisStoreSetGet(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "user_profile_a@b.co", json.RawMessage(`{"id":"a@b.co"}`)))

	got, ok, err := store.Get(ctx, "user_profile_a@b.co")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"a@b.co"}`, string(got))

	raw, err := mr.Get("benki:user_profile_a@b.co")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a@b.co"}`, raw)
}

func TestRedisStoreMissingKey(t *testing.T) {
	store, _ := newTestRedisStore(t)
	v, ok, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestRedisStoreDelete(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", json.RawMessage(`1`)))
	require.NoError(t, store.Delete(ctx, "k"))
	assert.False(t, mr.Exists("benki:k"))
}

func TestRedisStoreUpdateMultiKey(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, store, "members", []string{"x"}))

	err := store.Update(ctx, []string{"members", "count"}, func(cur map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		var members []string
		if _, err := Decode(cur, "members", &members); err != nil {
			return nil, err
		}
		members = append(members, "y")
		next := map[string]json.RawMessage{}
		if err := Encode(next, "members", members); err != nil {
			return nil, err
		}
		if err := Encode(next, "count", len(members)); err != nil {
			return nil, err
		}
		return next, nil
	})
	require.NoError(t, err)

	members, _, err := GetJSON[[]string](ctx, store, "members")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, members)

	count, _, err := GetJSON[int](ctx, store, "count")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRedisStoreConcurrentUpdates(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	const workers = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := UpdateJSON(ctx, store, "counter", func(n int, _ bool) (int, error) {
				return n + 1, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, _, err := GetJSON[int](ctx, store, "counter")
	require.NoError(t, err)
	assert.Equal(t, workers, n)
}

func TestRedisStorePing(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisStore(client, "")

	require.NoError(t, store.Ping(context.Background()))
	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
