package xotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrExportSuspended 熔断器断开期间的导出被直接丢弃
var ErrExportSuspended = errors.New("xotel: span export suspended")

// Breaker 远端 span 导出的熔断参数。Failures 为 0 时不熔断。
type Breaker struct {
	// Failures 连续失败多少次后断开
	Failures uint32
	// Cooldown 断开后多久放行一次试探导出，0 时为 60s
	Cooldown time.Duration
}

// Validate 校验熔断参数
func (b Breaker) Validate() error {
	if b.Cooldown < 0 {
		return fmt.Errorf("xotel: breaker cooldown must not be negative, got %s", b.Cooldown)
	}
	return nil
}

// breakerExporter 在 collector 不可用时快速失败，避免每个批次都等满导出超时。
type breakerExporter struct {
	next sdktrace.SpanExporter
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func newBreakerExporter(name string, next sdktrace.SpanExporter, b Breaker) *breakerExporter {
	st := gobreaker.Settings{
		Name:        "xotel." + name,
		MaxRequests: 1,
		Timeout:     b.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.Failures
		},
		// 调用方取消不算 collector 故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &breakerExporter{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](st)}
}

// ExportSpans 实现 sdktrace.SpanExporter
func (e *breakerExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	_, err := e.cb.Execute(func() (struct{}, error) {
		return struct{}{}, e.next.ExportSpans(ctx, spans)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %d spans dropped: %w", ErrExportSuspended, len(spans), err)
	}
	return err
}

// Shutdown 实现 sdktrace.SpanExporter，不经过熔断器。
func (e *breakerExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

func (e *breakerExporter) state() gobreaker.State {
	return e.cb.State()
}
