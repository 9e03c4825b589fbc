package users

import (
	"strings"
	"time"
)

// 角色
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// User 用户
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateInput 创建用户的请求体
type CreateInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Role  string `json:"role" validate:"omitempty,oneof=admin member viewer"`
}

// UpdateInput 部分更新，nil 字段保持不变
type UpdateInput struct {
	Email *string `json:"email" validate:"omitnil,email,max=254"`
	Name  *string `json:"name" validate:"omitnil,min=1,max=100"`
	Role  *string `json:"role" validate:"omitempty,oneof=admin member viewer"`
}

// normalized 去掉 Email、Name 首尾空白，校验前调用
func (in CreateInput) normalized() CreateInput {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	return in
}

// normalized 与 CreateInput.normalized 相同，只处理非 nil 字段，不修改调用方的值
func (in UpdateInput) normalized() UpdateInput {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	in.Email = trim(in.Email)
	in.Name = trim(in.Name)
	return in
}

// Empty 是否没有任何待更新字段
func (in UpdateInput) Empty() bool {
	return in.Email == nil && in.Name == nil && in.Role == nil
}

func (in UpdateInput) apply(u User) User {
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	return u
}
