package xrun

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_FirstErrorCancelsOthers(t *testing.T) {
	boom := errors.New("boom")
	stopped := make(chan struct{})
	err := Run(context.Background(), []Option{WithoutSignalHandler()},
		Func("failing", func(context.Context) error { return boom }),
		Func("waiting", func(ctx context.Context) error {
			defer close(stopped)
			return blockUntilDone(ctx)
		}),
	)
	assert.ErrorIs(t, err, boom)
	<-stopped
}

func TestRun_Signal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGTERM
	err := Run(context.Background(), []Option{withSignalChan(sigCh), WithName("users")},
		Func("server", blockUntilDone))

	require.ErrorIs(t, err, ErrSignal)
	var se *SignalError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, syscall.SIGTERM, se.Signal)
	assert.Contains(t, err.Error(), "terminated")
}

func TestRun_ParentCancelIsClean(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, Run(ctx, []Option{WithSignals(syscall.SIGUSR1)}, Func("server", blockUntilDone)))
}

func TestGroup_CancelCauseAndNilActor(t *testing.T) {
	g, _ := NewGroup(context.Background())
	cause := errors.New("config invalid")
	g.Go(Func("a", func(context.Context) error { return nil }))
	g.Cancel(cause)
	assert.ErrorIs(t, g.Wait(), cause)

	g, _ = NewGroup(nil) //nolint:staticcheck // nil ctx 被归一化
	g.Go(Actor{Name: "empty"})
	assert.ErrorIs(t, g.Wait(), ErrNilActor)
}

func TestHTTPServer_GracefulShutdown(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- HTTPServer("http", srv, time.Second).Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestHTTPServer_ListenError(t *testing.T) {
	srv := &http.Server{Addr: "256.0.0.1:bad", ReadHeaderTimeout: time.Second}
	assert.Error(t, HTTPServer("http", srv, 0).Run(context.Background()))
}

func TestGRPCServer_GracefulStop(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- GRPCServer("grpc", srv, lis, time.Second).Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
