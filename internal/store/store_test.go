package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/poi-cli/internal/resilience"
)

func TestOpen_SQLiteDefault(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, Config{DSN: filepath.Join(t.TempDir(), "poi.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	rs, ok := st.(*RetryStorage)
	require.True(t, ok)
	_, ok = rs.Unwrap().(*SQLiteStorage)
	assert.True(t, ok)

	require.NoError(t, st.Set(ctx, "k", []byte("v")))
	data, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}

func TestOpen_Memory(t *testing.T) {
	st, err := Open(context.Background(), Config{Driver: "MEMORY"})
	require.NoError(t, err)
	_, ok := st.(*MemoryStorage)
	assert.True(t, ok)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "dynamo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "dynamo"`)
}

func TestMemory_RoundTrip(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	data, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)

	value := []byte("v1")
	require.NoError(t, st.Set(ctx, "k", value))
	value[0] = 'x' // caller mutation does not leak into storage

	data, err = st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	require.NoError(t, st.Delete(ctx, "k"))
	data, err = st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, st.Close())
}

func TestRedis_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	st := NewRedisFromClient(client)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	_, err := st.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: get k")

	err = st.Set(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: set k")
}

// flakyStorage fails the first n calls of each operation with err.
type flakyStorage struct {
	*MemoryStorage
	failures int
	err      error
	calls    int
}

func (f *flakyStorage) Set(ctx context.Context, key string, value []byte) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.MemoryStorage.Set(ctx, key, value)
}

func fastPolicy() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestRetryStorage_RetriesTransient(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStorage{MemoryStorage: NewMemory(), failures: 2, err: resilience.Transient(errors.New("i/o timeout"))}
	st := WithRetry(inner, "memory", fastPolicy())

	require.NoError(t, st.Set(ctx, "k", []byte("v")))
	assert.Equal(t, 3, inner.calls)

	data, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
	require.NoError(t, st.Delete(ctx, "k"))
	assert.NoError(t, st.Close())
}

func TestRetryStorage_GivesUp(t *testing.T) {
	inner := &flakyStorage{MemoryStorage: NewMemory(), failures: 10, err: resilience.Transient(errors.New("broken pipe"))}
	st := WithRetry(inner, "memory", fastPolicy())

	err := st.Set(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStorage_PermanentErrorNotRetried(t *testing.T) {
	inner := &flakyStorage{MemoryStorage: NewMemory(), failures: 10, err: errors.New("value too long")}
	st := WithRetry(inner, "memory", fastPolicy())

	require.Error(t, st.Set(context.Background(), "k", []byte("v")))
	assert.Equal(t, 1, inner.calls)
}
