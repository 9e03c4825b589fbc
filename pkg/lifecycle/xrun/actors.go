package xrun

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
)

// HTTPServerInterface *http.Server 满足此接口
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 运行 HTTP 服务器，ctx 取消后在 timeout 内优雅关闭（timeout<=0 不限时）。
func HTTPServer(name string, srv HTTPServerInterface, timeout time.Duration) Actor {
	return Actor{Name: name, Run: func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		sctx, cancel := shutdownContext(timeout)
		defer cancel()
		shutdownErr := srv.Shutdown(sctx)
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Join(err, shutdownErr)
		}
		return shutdownErr
	}}
}

// GRPCServerInterface *grpc.Server 满足此接口
type GRPCServerInterface interface {
	Serve(lis net.Listener) error
	GracefulStop()
	Stop()
}

// GRPCServer 在 lis 上运行 gRPC 服务器，ctx 取消后 GracefulStop，超过 timeout 强制 Stop。
func GRPCServer(name string, srv GRPCServerInterface, lis net.Listener, timeout time.Duration) Actor {
	return Actor{Name: name, Run: func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(lis) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		sctx, cancel := shutdownContext(timeout)
		defer cancel()
		select {
		case <-stopped:
		case <-sctx.Done():
			srv.Stop()
			<-stopped
		}
		// 在 Serve 启动前停止时返回 ErrServerStopped
		if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	}}
}

// Func 把普通函数包装为 Actor
func Func(name string, fn func(ctx context.Context) error) Actor {
	return Actor{Name: name, Run: fn}
}

func shutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
