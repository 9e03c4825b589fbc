package xctx

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// =============================================================================
// Component 传输类型
// =============================================================================

// Component 标识请求进入服务时使用的传输类型。
type Component string

const (
	ComponentHTTP     Component = "http"
	ComponentRPC      Component = "rpc"
	ComponentWS       Component = "ws"
	ComponentInternal Component = "internal"
)

// String 实现 fmt.Stringer
func (c Component) String() string { return string(c) }

// =============================================================================
// Correlation 关联上下文快照
// =============================================================================

// Correlation 是一次逻辑请求的关联上下文。
//
// 所有字段均可选，空字符串表示未设置。Tags 承载任意扩展键值。
type Correlation struct {
	RequestID     string
	CorrelationID string
	TraceID       string
	SpanID        string
	ParentSpanID  string
	TraceFlags    string
	UserID        string
	UserRole      string
	Component     Component
	Service       string
	Method        string
	Tags          map[string]any
}

// Clone 返回深拷贝（Tags 独立）。
func (c Correlation) Clone() Correlation {
	if c.Tags != nil {
		c.Tags = maps.Clone(c.Tags)
	}
	return c
}

// IsZero 所有字段均未设置时返回 true。
func (c Correlation) IsZero() bool {
	return c.RequestID == "" && c.CorrelationID == "" &&
		c.TraceID == "" && c.SpanID == "" && c.ParentSpanID == "" && c.TraceFlags == "" &&
		c.UserID == "" && c.UserRole == "" && c.Component == "" &&
		c.Service == "" && c.Method == "" && len(c.Tags) == 0
}

// =============================================================================
// Store 可变存储
// =============================================================================

// Store 是挂在 context 上的可变关联上下文。
//
// 一个 Store 只属于一次逻辑请求；同一请求内派生的 goroutine 共享它，
// 因此读写通过 RWMutex 保护。不同请求持有不同的 Store，彼此不可见。
type Store struct {
	mu sync.RWMutex
	c  Correlation
}

func newStore(c Correlation) *Store {
	return &Store{c: c.Clone()}
}

// Snapshot 返回当前内容的深拷贝。
func (s *Store) Snapshot() Correlation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Clone()
}

// Update 在锁内修改存储内容。
func (s *Store) Update(fn func(c *Correlation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.c)
}

func (s *Store) view(fn func(c *Correlation)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.c)
}

// =============================================================================
// Run / 安装
// =============================================================================

// FromContext 返回 ctx 上当前活跃的 Store。
func FromContext(ctx context.Context) (*Store, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(keyStore).(*Store)
	return s, ok && s != nil
}

// Active 判断 ctx 上是否存在活跃的 Store。
func Active(ctx context.Context) bool {
	_, ok := FromContext(ctx)
	return ok
}

// WithStore 在派生 context 上安装一个以 c 为初值的新 Store。
//
// 外层 context 的 Store 不受影响；新 Store 只对派生链可见。
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithStore(ctx context.Context, c Correlation) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyStore, newStore(c)), nil
}

// Run 以 c 作为活跃关联上下文执行 fn，返回 fn 的错误（原样）。
//
// 嵌套调用时内层 Store 遮蔽外层，fn 返回后外层 context 依旧解析到原 Store，
// 内容不受内层 Set 影响。fn 中启动的 goroutine 只要使用传入的 ctx，即可看到同一 Store。
func Run(ctx context.Context, c Correlation, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilFunc
	}
	inner, err := WithStore(ctx, c)
	if err != nil {
		return err
	}
	return fn(inner)
}

// RunValue 是 Run 的泛型版本，返回 fn 的结果。
func RunValue[T any](ctx context.Context, c Correlation, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, ErrNilFunc
	}
	inner, err := WithStore(ctx, c)
	if err != nil {
		return zero, err
	}
	return fn(inner)
}

// Fork 复制当前 Store 并安装到派生 context 上。
//
// 派生 context 上的修改不会回写到原 Store。没有活跃 Store 时原样返回 ctx 与 false。
func Fork(ctx context.Context) (context.Context, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return ctx, false
	}
	return context.WithValue(ctx, keyStore, newStore(s.Snapshot())), true
}

// =============================================================================
// Get / Set / GetAll
// =============================================================================

// Set 修改当前活跃 Store 中的一个字段。
//
// 已知 key（见 Key 常量）写入对应的类型化字段，值会被转换为字符串；
// 其余 key 写入 Tags。value 为 nil 时清除该字段。
// 没有活跃 Store 时静默忽略，不会隐式创建。
func Set(ctx context.Context, key string, value any) {
	s, ok := FromContext(ctx)
	if !ok || key == "" {
		return
	}
	s.Update(func(c *Correlation) {
		if f := c.field(key); f != nil {
			*f = stringify(value)
			return
		}
		if key == KeyComponent {
			c.Component = Component(stringify(value))
			return
		}
		if value == nil {
			delete(c.Tags, key)
			return
		}
		if c.Tags == nil {
			c.Tags = make(map[string]any)
		}
		c.Tags[key] = value
	})
}

// Get 读取当前活跃 Store 中的一个字段，未设置或无 Store 时返回 (nil, false)。
func Get(ctx context.Context, key string) (any, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	var (
		v     any
		found bool
	)
	s.view(func(c *Correlation) {
		if f := c.field(key); f != nil {
			v, found = *f, *f != ""
			return
		}
		if key == KeyComponent {
			v, found = c.Component, c.Component != ""
			return
		}
		v, found = c.Tags[key]
	})
	if !found {
		return nil, false
	}
	return v, true
}

// GetAll 返回当前活跃上下文的深拷贝，无 Store 时返回空结构。
func GetAll(ctx context.Context) Correlation {
	s, ok := FromContext(ctx)
	if !ok {
		return Correlation{}
	}
	return s.Snapshot()
}

// Update 在锁内批量修改当前活跃 Store，无 Store 时返回 false。
func Update(ctx context.Context, fn func(c *Correlation)) bool {
	s, ok := FromContext(ctx)
	if !ok || fn == nil {
		return false
	}
	s.Update(fn)
	return true
}

// SetTag 写入扩展标签，已知字段名会被忽略。
func SetTag(ctx context.Context, key string, value any) {
	if IsReservedKey(key) {
		return
	}
	Set(ctx, key, value)
}

// IsReservedKey 判断 key 是否为 Correlation 的类型化字段名。
func IsReservedKey(key string) bool {
	var c Correlation
	return c.field(key) != nil || key == KeyComponent
}

// SetComponent 设置传输类型。
func SetComponent(ctx context.Context, comp Component) {
	Update(ctx, func(c *Correlation) { c.Component = comp })
}

// SetOperation 显式设置逻辑服务名和方法名，空值不覆盖已有内容。
func SetOperation(ctx context.Context, service, method string) {
	Update(ctx, func(c *Correlation) {
		if service != "" {
			c.Service = service
		}
		if method != "" {
			c.Method = method
		}
	})
}

// field 返回已知字符串字段的指针，未知 key 返回 nil。
func (c *Correlation) field(key string) *string {
	switch key {
	case KeyRequestID:
		return &c.RequestID
	case KeyCorrelationID:
		return &c.CorrelationID
	case KeyTraceID:
		return &c.TraceID
	case KeySpanID:
		return &c.SpanID
	case KeyParentSpanID:
		return &c.ParentSpanID
	case KeyTraceFlags:
		return &c.TraceFlags
	case KeyUserID:
		return &c.UserID
	case KeyUserRole:
		return &c.UserRole
	case KeyService:
		return &c.Service
	case KeyMethod:
		return &c.Method
	}
	return nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func readString(ctx context.Context, pick func(c *Correlation) string) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	var v string
	s.view(func(c *Correlation) { v = pick(c) })
	return v
}
