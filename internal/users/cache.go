package users

import (
	"context"
	"sync"

	"github.com/sokolovgit/code-hive-sub000/pkg/util/xlru"
)

// CachedRepository 为 Find 加一层进程内 LRU 缓存，写操作使对应条目失效。
//
// 每次失效都递增 version；Find 未命中时只有在读库期间 version 未变才回填，
// 避免与 Update/Delete 交错的读把旧值写回缓存。
type CachedRepository struct {
	Repository
	cache *xlru.Cache[string, User]

	mu      sync.Mutex
	version uint64
}

// NewCachedRepository 包装 next。用完调用 Close。
func NewCachedRepository(next Repository, cfg xlru.Config) (*CachedRepository, error) {
	c, err := xlru.New[string, User](cfg)
	if err != nil {
		return nil, err
	}
	return &CachedRepository{Repository: next, cache: c}, nil
}

// Find 先查缓存
func (r *CachedRepository) Find(ctx context.Context, id string) (User, error) {
	if u, ok := r.cache.Get(id); ok {
		return u, nil
	}
	r.mu.Lock()
	seen := r.version
	r.mu.Unlock()

	u, err := r.Repository.Find(ctx, id)
	if err != nil {
		return User{}, err
	}
	r.mu.Lock()
	if r.version == seen {
		r.cache.Set(id, u)
	}
	r.mu.Unlock()
	return u, nil
}

// Update 先写后失效
func (r *CachedRepository) Update(ctx context.Context, u User) error {
	err := r.Repository.Update(ctx, u)
	r.invalidate(u.ID)
	return err
}

// Delete 先删后失效
func (r *CachedRepository) Delete(ctx context.Context, id string) error {
	err := r.Repository.Delete(ctx, id)
	r.invalidate(id)
	return err
}

func (r *CachedRepository) invalidate(id string) {
	r.mu.Lock()
	r.version++
	r.cache.Delete(id)
	r.mu.Unlock()
}

// Stats 缓存统计
func (r *CachedRepository) Stats() xlru.Stats { return r.cache.Stats() }

// Close 释放缓存
func (r *CachedRepository) Close() { r.cache.Close() }
