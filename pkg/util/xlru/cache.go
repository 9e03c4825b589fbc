package xlru

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MaxSize 容量上限
const MaxSize = 1 << 24

// Config 缓存配置
type Config struct {
	// Size 最大条目数
	Size int `koanf:"size" json:"size"`
	// TTL 条目存活时间，0 表示不过期
	TTL time.Duration `koanf:"ttl" json:"ttl"`
}

// Validate 校验配置
func (c Config) Validate() error {
	switch {
	case c.Size <= 0:
		return ErrInvalidSize
	case c.Size > MaxSize:
		return fmt.Errorf("%w: %d > %d", ErrSizeExceedsMax, c.Size, MaxSize)
	case c.TTL < 0:
		return ErrInvalidTTL
	}
	return nil
}

// Stats 累计统计
type Stats struct {
	Hits   uint64
	Misses uint64
	// Evictions 包含容量淘汰、过期、Delete 与 Purge
	Evictions uint64
}

// Option 可选配置
type Option[K comparable, V any] func(*Cache[K, V])

// WithOnEvicted 设置淘汰回调。回调在底层锁内执行，不得调用缓存自身的方法。
func WithOnEvicted[K comparable, V any](fn func(key K, value V)) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEvicted = fn }
}

// Cache 并发安全的 TTL LRU 缓存。Close 之后读返回 miss，写被忽略。
type Cache[K comparable, V any] struct {
	lru       *expirable.LRU[K, V]
	onEvicted func(K, V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

// New 创建缓存
func New[K comparable, V any](cfg Config, opts ...Option[K, V]) (*Cache[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Cache[K, V]{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.lru = expirable.NewLRU(cfg.Size, c.evicted, cfg.TTL)
	return c, nil
}

func (c *Cache[K, V]) evicted(key K, value V) {
	c.evictions.Add(1)
	if c.onEvicted != nil {
		c.onEvicted(key, value)
	}
}

// Get 读取并刷新 LRU 顺序
func (c *Cache[K, V]) Get(key K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set 写入或覆盖，覆盖时刷新 TTL。返回是否因容量淘汰了旧条目。
func (c *Cache[K, V]) Set(key K, value V) bool {
	if c.closed.Load() {
		return false
	}
	return c.lru.Add(key, value)
}

// Delete 删除条目，返回条目是否存在
func (c *Cache[K, V]) Delete(key K) bool {
	if c.closed.Load() {
		return false
	}
	return c.lru.Remove(key)
}

// Purge 清空
func (c *Cache[K, V]) Purge() {
	if c.closed.Load() {
		return
	}
	c.lru.Purge()
}

// Len 当前条目数，可能包含尚未被清理的过期条目
func (c *Cache[K, V]) Len() int {
	if c.closed.Load() {
		return 0
	}
	return c.lru.Len()
}

// Stats 返回累计统计
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close 清空缓存并停止后台清理 goroutine，幂等。
func (c *Cache[K, V]) Close() {
	c.closed.Store(true)
	c.closeOnce.Do(func() {
		c.lru.Purge()
		stopCleanup(c.lru)
	})
}

// stopCleanup 关闭 expirable.LRU 未导出的 done 通道。
//
// golang-lru v2.0.7 在 TTL > 0 时启动清理 goroutine 却没有公开的 Close；
// 字段名或类型变化时返回 false，由 TestStopCleanup_UpstreamLayout 发现。
// TODO: 上游发布 LRU.Close 后改为直接调用。
func stopCleanup(lru any) (stopped bool) {
	defer func() {
		if recover() != nil {
			stopped = false
		}
	}()
	v := reflect.ValueOf(lru)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return false
	}
	done := v.Elem().FieldByName("done")
	if !done.IsValid() || done.Type() != reflect.TypeOf(make(chan struct{})) || done.IsNil() {
		return false
	}
	ch := *(*chan struct{})(unsafe.Pointer(done.UnsafeAddr())) //nolint:gosec // 访问上游未导出字段
	close(ch)
	return true
}
