package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
)

// Actor 一个长期运行的组件。Run 应在 ctx 取消后尽快返回。
type Actor struct {
	Name string
	Run  func(ctx context.Context) error
}

// Group 基于 errgroup 协调一组 Actor：任一返回错误即取消其余。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	o        *options
}

// NewGroup 创建 Group 并返回其 ctx。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)
	return &Group{eg: eg, ctx: egCtx, causeCtx: causeCtx, cancel: cancel, o: newOptions(opts)}, egCtx
}

// Go 启动一个 Actor，启停写 debug 日志，异常退出写 warn 日志。
func (g *Group) Go(a Actor) {
	g.eg.Go(func() error {
		if a.Run == nil {
			return ErrNilActor
		}
		attrs := []slog.Attr{slog.String("group", g.o.name), slog.String("actor", a.Name)}
		g.o.log().Debug(g.ctx, "actor starting", attrs...)
		err := a.Run(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.o.log().Warn(g.ctx, "actor exited with error", append(attrs, xlog.Err(err))...)
		} else {
			g.o.log().Debug(g.ctx, "actor stopped", attrs...)
		}
		return err
	})
}

// Cancel 以 cause 为原因取消所有 Actor，Wait 会返回该原因。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Wait 等待全部 Actor 退出。
//
// 返回第一个错误；取消引起的 context.Canceled 被替换为 Cancel 的原因，
// 没有显式原因时返回 nil。
func (g *Group) Wait() error {
	defer g.cancel(nil)
	err := g.eg.Wait()

	cause := context.Cause(g.causeCtx)
	explicit := g.causeCtx.Err() != nil && cause != nil && !errors.Is(cause, context.Canceled)
	switch {
	case err == nil && explicit:
		return cause
	case errors.Is(err, context.Canceled) && g.causeCtx.Err() != nil:
		if explicit {
			return cause
		}
		return nil
	default:
		return err
	}
}

// Run 运行 actors 直到其中之一失败、ctx 取消或收到信号。
func Run(ctx context.Context, opts []Option, actors ...Actor) error {
	g, _ := NewGroup(ctx, opts...)
	if !g.o.noSignals {
		g.Go(Actor{Name: "signals", Run: g.waitSignal})
	}
	for _, a := range actors {
		g.Go(a)
	}
	return g.Wait()
}

func (g *Group) waitSignal(ctx context.Context) error {
	ch := g.o.sigCh
	if ch == nil {
		sys := make(chan os.Signal, 1)
		signal.Notify(sys, g.o.signals...)
		defer signal.Stop(sys)
		ch = sys
	}
	select {
	case sig := <-ch:
		g.o.log().Info(ctx, "received signal", slog.String("group", g.o.name), slog.String("signal", sig.String()))
		g.cancel(&SignalError{Signal: sig})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
