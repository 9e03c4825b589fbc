package xlog_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
)

func TestAsync_CleanupDrainsQueue(t *testing.T) {
	buf := &syncBuffer{}
	logger, cleanup, err := xlog.New().SetOutput(buf).SetFormat("json").SetAsync(64).Build()
	require.NoError(t, err)

	for i := range 10 {
		logger.Info(context.Background(), "queued", slog.Int("i", i))
	}
	require.NoError(t, cleanup())
	require.NoError(t, cleanup(), "重复调用安全")

	assert.Len(t, records(t, buf.String()), 10)
	assert.Zero(t, xlog.Dropped(logger))
}

// blockingWriter 在 release 关闭前阻塞所有写入
type blockingWriter struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	w.mu.Lock()
	w.n++
	w.mu.Unlock()
	return len(p), nil
}

func TestAsync_DropsWhenFullWithoutBlocking(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	logger, cleanup, err := xlog.New().SetOutput(w).SetAsync(1).Build()
	require.NoError(t, err)

	for range 10 {
		logger.Info(context.Background(), "burst")
	}
	assert.GreaterOrEqual(t, xlog.Dropped(logger), uint64(8))

	close(w.release)
	require.NoError(t, cleanup())
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.EqualValues(t, 10-xlog.Dropped(logger), w.n)
}

func TestAsyncWriter_WriteAfterClose(t *testing.T) {
	aw := xlog.NewAsyncWriter(&syncBuffer{}, 0, nil)
	require.NoError(t, aw.Close())
	_, err := aw.Write([]byte("late"))
	assert.ErrorIs(t, err, xlog.ErrWriterClosed)
}

func TestEnrich_FallsBackToActiveSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger, buf := newJSONLogger(t)
	logger.Info(ctx, "no store")

	rec := lastRecord(t, buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["traceId"])
	assert.Equal(t, span.SpanContext().SpanID().String(), rec["spanId"])

	// Store 中的值优先
	ctx, err := xctx.WithStore(ctx, xctx.Correlation{TraceID: "0af7651916cd43dd8448eb211c80319c", SpanID: "b7ad6b7169203331"})
	require.NoError(t, err)
	logger.Info(ctx, "with store")
	rec = lastRecord(t, buf)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", rec["traceId"])
}

type orderService struct {
	logger xlog.Logger
}

func (s *orderService) PlaceOrder(ctx context.Context) {
	s.logger.Info(ctx, "placing")
}

func TestCallerInference(t *testing.T) {
	logger, buf := newJSONLogger(t, func(b *xlog.Builder) { b.SetCallerInference(true) })
	svc := &orderService{logger: logger}

	svc.PlaceOrder(context.Background())
	rec := lastRecord(t, buf)
	assert.Equal(t, "orderService", rec["service"])
	assert.Equal(t, "PlaceOrder", rec["method"])

	// 显式值优先于推断
	ctx := withStore(t, xctx.Correlation{Service: "Billing", Method: "charge"})
	svc.PlaceOrder(ctx)
	rec = lastRecord(t, buf)
	assert.Equal(t, "Billing", rec["service"])
	assert.Equal(t, "charge", rec["method"])

	// http 组件不推断
	svc.PlaceOrder(withStore(t, xctx.Correlation{Component: xctx.ComponentHTTP}))
	rec = lastRecord(t, buf)
	assert.NotContains(t, rec, "service")
}

func TestCallerInference_OffByDefault(t *testing.T) {
	logger, buf := newJSONLogger(t)
	(&orderService{logger: logger}).PlaceOrder(context.Background())
	assert.NotContains(t, lastRecord(t, buf), "method")
}

func TestSplitFunction(t *testing.T) {
	tests := []struct {
		in      string
		service string
		method  string
		ok      bool
	}{
		{"example.com/app/users.(*Service).Create", "Service", "Create", true},
		{"example.com/app/users.(*Service).Create.func1", "Service", "Create", true},
		{"example.com/app/users.Service.Get", "Service", "Get", true},
		{"example.com/app/users.Register", "users", "Register", true},
		{"example.com/app/users.Do[...]", "", "", false},
		{"example.com/app/users.(*Server).ServeHTTP", "", "", false},
		{"example.com/app/users.glob..func1", "", "", false},
		{"main.main", "main", "main", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			service, method, ok := xlog.SplitFunction(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.service, service)
				assert.Equal(t, tt.method, method)
			}
		})
	}
}

func TestGlobalLogger(t *testing.T) {
	t.Cleanup(xlog.ResetDefault)

	logger, buf := newJSONLogger(t)
	xlog.SetDefault(logger)
	xlog.SetDefault(nil)
	assert.Same(t, logger, xlog.Default())

	ctx := withStore(t, xctx.Correlation{RequestID: "g1"})
	xlog.Info(ctx, "global")
	xlog.Fatal(ctx, "still running")

	recs := records(t, buf.String())
	require.Len(t, recs, 2)
	assert.Equal(t, "g1", recs[0]["requestId"])
	assert.Equal(t, "FATAL", recs[1]["level"])
}

func TestGlobalLogger_FallbackOnBuildError(t *testing.T) {
	restore := xlog.SetNewBuilderForTest(func() *xlog.Builder { return xlog.New().SetFormat("bogus") })
	t.Cleanup(func() {
		restore()
		xlog.ResetDefault()
	})
	xlog.ResetDefault()
	assert.NotNil(t, xlog.Default())
}

func TestHandler_BridgesToStdLog(t *testing.T) {
	buf := &syncBuffer{}
	logger, cleanup, err := xlog.New().SetOutput(buf).SetFormat("json").Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	std := slog.NewLogLogger(xlog.Handler(logger), slog.LevelError)
	std.Print("http: TLS handshake error")

	recs := records(t, buf.String())
	require.Len(t, recs, 1)
	assert.Equal(t, "ERROR", recs[0]["level"])
	assert.Equal(t, "http: TLS handshake error", recs[0]["msg"])

	assert.NotNil(t, xlog.Handler(nil))
}
