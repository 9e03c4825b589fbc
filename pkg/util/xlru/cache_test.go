package xlru

import (
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"ok", Config{Size: 10, TTL: time.Minute}, nil},
		{"no ttl", Config{Size: 1}, nil},
		{"zero size", Config{}, ErrInvalidSize},
		{"too large", Config{Size: MaxSize + 1}, ErrSizeExceedsMax},
		{"negative ttl", Config{Size: 1, TTL: -time.Second}, ErrInvalidTTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New[string, int](tt.cfg)
			if c != nil {
				c.Close()
			}
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCache_GetSetDeleteStats(t *testing.T) {
	c, err := New[string, int](Config{Size: 2, TTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.Set("a", 1))
	assert.False(t, c.Set("b", 2))
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	// b 最久未访问，被淘汰
	assert.True(t, c.Set("c", 3))
	_, ok = c.Get("b")
	assert.False(t, ok)

	assert.True(t, c.Delete("c"))
	assert.False(t, c.Delete("c"))
	assert.Equal(t, 1, c.Len())

	assert.Equal(t, Stats{Hits: 1, Misses: 1, Evictions: 2}, c.Stats())
}

func TestCache_Expiry(t *testing.T) {
	c, err := New[string, int](Config{Size: 4, TTL: 30 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", 1)
	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestCache_OnEvictedAndPurge(t *testing.T) {
	var mu sync.Mutex
	var evicted []string
	c, err := New(Config{Size: 4}, WithOnEvicted(func(k string, _ int) {
		mu.Lock()
		evicted = append(evicted, k)
		mu.Unlock()
	}))
	require.NoError(t, err)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	assert.Zero(t, c.Len())
	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b"}, evicted)
	mu.Unlock()
}

func TestCache_ClosedIsInert(t *testing.T) {
	c, err := New[string, int](Config{Size: 4, TTL: time.Minute})
	require.NoError(t, err)
	c.Set("a", 1)
	c.Close()
	c.Close()

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.False(t, c.Set("b", 2))
	assert.False(t, c.Delete("a"))
	assert.Zero(t, c.Len())
	c.Purge()
}

func TestStopCleanup_UpstreamLayout(t *testing.T) {
	lru := expirable.NewLRU[string, int](1, nil, time.Minute)
	assert.True(t, stopCleanup(lru), "golang-lru internal layout changed")
	assert.False(t, stopCleanup(lru), "second close is recovered")
	assert.False(t, stopCleanup(nil))
	assert.False(t, stopCleanup(&struct{}{}))
}
