package users

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sokolovgit/code-hive-sub000/pkg/errors/xerr"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xtrace"
)

// 错误码
const (
	CodeUserNotFound = "USER_NOT_FOUND"
	CodeEmailTaken   = "EMAIL_TAKEN"
	CodeInvalidInput = "INVALID_INPUT"
	CodeEmptyUpdate  = "EMPTY_UPDATE"
	CodeStoreFailure = "USER_STORE_FAILURE"
)

// IDGenerator 生成用户 id，由 xid.Generator 实现
type IDGenerator interface {
	Next(ctx context.Context) (string, error)
}

// Service 用户领域服务。每个操作在独立 span 中执行，错误统一转换为 xerr.Error。
type Service struct {
	repo     Repository
	ids      IDGenerator
	tracer   *xtrace.Tracer
	logger   xlog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// ServiceOption 服务选项
type ServiceOption func(*Service)

// WithTracer 设置追踪管理器，nil 时 span 为 no-op
func WithTracer(t *xtrace.Tracer) ServiceOption {
	return func(s *Service) { s.tracer = t }
}

// WithLogger 设置日志器
func WithLogger(l xlog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock 设置时钟
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService 创建服务
func NewService(repo Repository, ids IDGenerator, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		ids:      ids,
		logger:   xlog.Default(),
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Get 按 id 获取用户
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return xtrace.Do(ctx, s.tracer, "users.Get", func(ctx context.Context) (User, error) {
		u, err := s.repo.Find(ctx, id)
		if err != nil {
			return User{}, s.storeError(ctx, err, id)
		}
		return u, nil
	}, xtrace.WithAttributes(attribute.String("user.id", id)))
}

// List 列出全部用户
func (s *Service) List(ctx context.Context) ([]User, error) {
	return xtrace.Do(ctx, s.tracer, "users.List", func(ctx context.Context) ([]User, error) {
		list, err := s.repo.List(ctx)
		if err != nil {
			return nil, s.storeError(ctx, err, "")
		}
		if span := xtrace.ActiveSpan(ctx); span != nil {
			span.SetAttributes(attribute.Int("users.count", len(list)))
		}
		return list, nil
	})
}

// Create 创建用户，Role 缺省为 member
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in = in.normalized()
	return xtrace.Do(ctx, s.tracer, "users.Create", func(ctx context.Context) (User, error) {
		if err := s.check(in); err != nil {
			return User{}, err
		}
		id, err := s.ids.Next(ctx)
		if err != nil {
			return User{}, xerr.Wrap(err, xerr.KindInternal, CodeStoreFailure, "could not allocate user id")
		}
		now := s.now().UTC()
		u := User{
			ID:        id,
			Email:     in.Email,
			Name:      in.Name,
			Role:      in.Role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if u.Role == "" {
			u.Role = RoleMember
		}
		if err := s.repo.Create(ctx, u); err != nil {
			return User{}, s.storeError(ctx, err, id)
		}
		s.logger.Info(ctx, "user created", xlog.UserID(u.ID), xlog.Event("users.created"))
		return u, nil
	})
}

// Update 部分更新
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (User, error) {
	in = in.normalized()
	return xtrace.Do(ctx, s.tracer, "users.Update", func(ctx context.Context) (User, error) {
		if in.Empty() {
			return User{}, xerr.ClientInput(CodeEmptyUpdate, "no fields to update")
		}
		if err := s.check(in); err != nil {
			return User{}, err
		}
		cur, err := s.repo.Find(ctx, id)
		if err != nil {
			return User{}, s.storeError(ctx, err, id)
		}
		u := in.apply(cur)
		u.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, u); err != nil {
			return User{}, s.storeError(ctx, err, id)
		}
		s.logger.Info(ctx, "user updated", xlog.UserID(u.ID), xlog.Event("users.updated"))
		return u, nil
	}, xtrace.WithAttributes(attribute.String("user.id", id)))
}

// Delete 删除用户
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.tracer.Start(ctx, "users.Delete", func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return s.storeError(ctx, err, id)
		}
		s.logger.Info(ctx, "user deleted", xlog.UserID(id), xlog.Event("users.deleted"))
		return nil
	}, xtrace.WithAttributes(attribute.String("user.id", id)))
}

// check 校验输入，字段错误放入 metadata.fields（json 字段名 → 失败的规则）。
func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return xerr.Wrap(err, xerr.KindClientInput, CodeInvalidInput, "invalid input")
	}
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return xerr.ClientInput(CodeInvalidInput, "invalid input", xerr.WithMeta("fields", fields), xerr.WithCause(err))
}

func (s *Service) storeError(ctx context.Context, err error, id string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return xerr.NotFound(CodeUserNotFound, "user not found", xerr.WithMeta("id", id))
	case errors.Is(err, ErrDuplicateEmail):
		return xerr.Conflict(CodeEmailTaken, "email already registered")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Debug(ctx, "user store call abandoned", xlog.Err(err))
	}
	return xerr.Wrap(err, xerr.KindInternal, CodeStoreFailure, "user store failure")
}
