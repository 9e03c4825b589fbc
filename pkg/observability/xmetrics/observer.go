package xmetrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// Status 表示操作结果状态。
type Status string

const (
	// StatusOK 表示成功。
	StatusOK Status = "ok"
	// StatusError 表示失败。
	StatusError Status = "error"
)

// Attr 指标属性，直接使用 OTel 的 KeyValue。
//
// 只放低基数的值（方法、路由模板、状态码）；requestId、userId
// 这类每次请求都不同的值会让时间序列数量失控。
type Attr = attribute.KeyValue

// Options 定义一次测量的参数。
type Options struct {
	// Component 标识组件，为空时取关联上下文中的 component。
	Component string
	// Operation 标识操作名称。
	Operation string
	// Attrs 附加属性。
	Attrs []Attr
}

// Result 表示测量结束时的结果。
type Result struct {
	// Operation 非空时覆盖 Options.Operation，用于处理完成后才能确定的名称（如路由模板）。
	Operation string
	// Status 表示操作状态；为空时根据 Err 推导。
	Status Status
	// Err 表示操作错误。
	Err error
	// Attrs 附加属性。
	Attrs []Attr
}

// Measurement 表示一次进行中的测量。
type Measurement interface {
	// End 结束测量并记录结果，多次调用只记录一次。
	End(result Result)
}

// Observer 对操作计数并记录耗时。
type Observer interface {
	// Start 开始一次测量。
	Start(ctx context.Context, opts Options) Measurement
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// Start 返回空测量。
func (NoopObserver) Start(context.Context, Options) Measurement {
	return NoopMeasurement{}
}

// NoopMeasurement 是空测量实现。
type NoopMeasurement struct{}

// End 空实现。
func (NoopMeasurement) End(Result) {}

// Start 使用 observer 开始测量，保证返回非 nil 的 Measurement。
// nil observer 或返回 nil 的自定义 Observer 都会得到 [NoopMeasurement]。
func Start(ctx context.Context, observer Observer, opts Options) Measurement {
	if observer == nil {
		return NoopMeasurement{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m := observer.Start(ctx, opts)
	if m == nil {
		return NoopMeasurement{}
	}
	return m
}

func resolveStatus(result Result) Status {
	if result.Status != "" {
		return result.Status
	}
	if result.Err != nil {
		return StatusError
	}
	return StatusOK
}
