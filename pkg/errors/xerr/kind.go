package xerr

import "net/http"

// Kind 按后果划分的错误类别
type Kind int

// 错误类别
const (
	// KindInternal 非预期的内部故障：消息对外隐藏，始终记录
	KindInternal Kind = iota
	// KindClientInput 请求数据缺失或格式错误
	KindClientInput
	// KindBusinessRule 预期内的业务规则违反，默认不记录
	KindBusinessRule
	// KindNotFound 资源不存在
	KindNotFound
	// KindConflict 资源冲突（如唯一约束）
	KindConflict
	// KindUnauthenticated 未认证，始终记录用于安全审计
	KindUnauthenticated
	// KindForbidden 无权限，始终记录用于安全审计
	KindForbidden
	// KindUpstream 外部依赖失败：消息对外隐藏，始终记录
	KindUpstream
)

type kindDefaults struct {
	name     string
	status   int
	loggable bool
	expose   bool
}

var kindTable = map[Kind]kindDefaults{
	KindInternal:        {"internal", http.StatusInternalServerError, true, false},
	KindClientInput:     {"client_input", http.StatusBadRequest, true, true},
	KindBusinessRule:    {"business_rule", http.StatusBadRequest, false, true},
	KindNotFound:        {"not_found", http.StatusNotFound, false, true},
	KindConflict:        {"conflict", http.StatusConflict, false, true},
	KindUnauthenticated: {"unauthenticated", http.StatusUnauthorized, true, true},
	KindForbidden:       {"forbidden", http.StatusForbidden, true, true},
	KindUpstream:        {"upstream", http.StatusBadGateway, true, false},
}

func (k Kind) defaults() kindDefaults {
	if d, ok := kindTable[k]; ok {
		return d
	}
	return kindTable[KindInternal]
}

// String 返回类别名称
func (k Kind) String() string {
	return k.defaults().name
}

// DefaultStatus 返回该类别的默认 HTTP 状态码
func (k Kind) DefaultStatus() int {
	return k.defaults().status
}
