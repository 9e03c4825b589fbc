package users

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrNotFound 用户不存在
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail 邮箱已被其他用户使用
	ErrDuplicateEmail = errors.New("users: duplicate email")
)

// Repository 用户存储
type Repository interface {
	Find(ctx context.Context, id string) (User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepository 进程内存储，邮箱唯一（大小写不敏感）。
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

// NewMemoryRepository 创建空仓储
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Find 按 id 查找
func (r *MemoryRepository) Find(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// List 按创建时间、id 排序返回全部用户
func (r *MemoryRepository) List(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Create 新增
func (r *MemoryRepository) Create(ctx context.Context, u User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[emailKey(u.Email)]; ok {
		return ErrDuplicateEmail
	}
	r.byID[u.ID] = u
	r.byEmail[emailKey(u.Email)] = u.ID
	return nil
}

// Update 整体替换
func (r *MemoryRepository) Update(ctx context.Context, u User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.byID[u.ID]
	if !ok {
		return ErrNotFound
	}
	if owner, taken := r.byEmail[emailKey(u.Email)]; taken && owner != u.ID {
		return ErrDuplicateEmail
	}
	delete(r.byEmail, emailKey(old.Email))
	r.byID[u.ID] = u
	r.byEmail[emailKey(u.Email)] = u.ID
	return nil
}

// Delete 删除
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, emailKey(u.Email))
	return nil
}
