package cache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

func TestEntryKeyIsVersioned(t *testing.T) {
	a := entry(1, "q=logo|c=all")
	b := entry(2, "q=logo|c=all")
	c := entry(1, "q=logo|c=design")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, entry(1, "q=logo|c=all"))
	assert.Contains(t, a, "quickquid:catalog:v1:")
}

// fakeRedis implements the handful of commands the catalog cache issues
type fakeRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	fmt.Sscan(f.data[key], &n)
	n++
	f.data[key] = fmt.Sprint(n)
	return redis.NewIntResult(n, nil)
}

func TestCatalogCache_SetAfterInvalidateStaysInOldGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog(newFakeRedis(), time.Minute, zerolog.Nop())
	res := marketplace.Paginate([]marketplace.ServiceSummary{
		{Service: marketplace.Service{ID: "s1", Title: "Logo", BasePrice: 5000}},
	}, 1, 20)

	_, gen, ok := c.Get(ctx, "q")
	require.False(t, ok)
	assert.Equal(t, int64(0), gen)

	// a write lands while the query is still running
	c.Invalidate(ctx)
	c.Set(ctx, "q", gen, &res)

	_, newGen, ok := c.Get(ctx, "q")
	assert.False(t, ok, "result computed before the invalidation must not be served")
	assert.Equal(t, int64(1), newGen)

	c.Set(ctx, "q", newGen, &res)
	got, _, ok := c.Get(ctx, "q")
	require.True(t, ok)
	assert.Equal(t, "s1", got.Items[0].ID)
}

func TestCatalogCache_UnavailableGenerationSkipsSet(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	c := NewCatalog(rdb, time.Minute, zerolog.Nop())
	res := marketplace.Paginate([]marketplace.ServiceSummary{}, 1, 20)

	c.Set(ctx, "q", -1, &res)
	assert.Empty(t, rdb.data)
}

func TestCatalogCache_Redis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := NewClient(addr, "", 0)
	defer rdb.Close()
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	c := NewCatalog(rdb, time.Minute, zerolog.Nop())
	key := "test-" + time.Now().Format(time.RFC3339Nano)

	_, gen, ok := c.Get(ctx, key)
	assert.False(t, ok)

	res := marketplace.Paginate([]marketplace.ServiceSummary{
		{Service: marketplace.Service{ID: "s1", Title: "Logo", BasePrice: 5000}, SellerName: "Ada"},
	}, 1, 20)
	c.Set(ctx, key, gen, &res)

	got, _, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, "Ada", got.Items[0].SellerName)

	c.Invalidate(ctx)
	_, _, ok = c.Get(ctx, key)
	assert.False(t, ok)
}
