package xctx

import "context"

// =============================================================================
// Identity 已认证用户身份
// =============================================================================

// Identity 是上游已完成认证后附加到请求上的用户信息。
//
// xctx 只负责存取，不做任何认证或校验。
type Identity struct {
	UserID   string
	UserRole string
}

// IsZero 两个字段均为空时返回 true。
func (i Identity) IsZero() bool { return i.UserID == "" && i.UserRole == "" }

// UserID 返回当前用户 ID，不存在返回空字符串。
func UserID(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string { return c.UserID })
}

// UserRole 返回当前用户角色，不存在返回空字符串。
func UserRole(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string { return c.UserRole })
}

// RequireUserID 从 context 获取 userId，不存在则返回 ErrMissingUserID。
func RequireUserID(ctx context.Context) (string, error) {
	return require(ctx, UserID, ErrMissingUserID)
}

// GetIdentity 批量读取用户身份。
func GetIdentity(ctx context.Context) Identity {
	c := GetAll(ctx)
	return Identity{UserID: c.UserID, UserRole: c.UserRole}
}

// SetIdentity 将非空身份字段写入活跃 Store，无活跃 Store 时返回 false。
func SetIdentity(ctx context.Context, id Identity) bool {
	return Update(ctx, func(c *Correlation) {
		setIfNotEmpty(&c.UserID, id.UserID)
		setIfNotEmpty(&c.UserRole, id.UserRole)
	})
}
