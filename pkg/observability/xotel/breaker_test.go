package xotel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type flakyExporter struct {
	fail     atomic.Bool
	calls    atomic.Int32
	shutdown atomic.Bool
}

func (f *flakyExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	f.calls.Add(1)
	if f.fail.Load() {
		return errors.New("collector unavailable")
	}
	return nil
}

func (f *flakyExporter) Shutdown(context.Context) error {
	f.shutdown.Store(true)
	return nil
}

func TestBreakerExporter_TripsAndRecovers(t *testing.T) {
	next := &flakyExporter{}
	next.fail.Store(true)
	exp := newBreakerExporter("otlp-grpc", next, Breaker{Failures: 2, Cooldown: 20 * time.Millisecond})
	ctx := context.Background()

	require.Error(t, exp.ExportSpans(ctx, nil))
	require.Error(t, exp.ExportSpans(ctx, nil))
	assert.Equal(t, gobreaker.StateOpen, exp.state())

	err := exp.ExportSpans(ctx, make([]sdktrace.ReadOnlySpan, 3))
	assert.ErrorIs(t, err, ErrExportSuspended)
	assert.ErrorContains(t, err, "3 spans dropped")
	assert.EqualValues(t, 2, next.calls.Load())

	next.fail.Store(false)
	assert.Eventually(t, func() bool {
		return exp.ExportSpans(ctx, nil) == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, gobreaker.StateClosed, exp.state())

	require.NoError(t, exp.Shutdown(ctx))
	assert.True(t, next.shutdown.Load())
}

func TestBreakerExporter_CancelDoesNotTrip(t *testing.T) {
	exp := newBreakerExporter("otlp-http", cancelledExporter{}, Breaker{Failures: 1})
	for range 3 {
		assert.ErrorIs(t, exp.ExportSpans(context.Background(), nil), context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, exp.state())
}

type cancelledExporter struct{}

func (cancelledExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	return context.Canceled
}

func (cancelledExporter) Shutdown(context.Context) error { return nil }

func TestBreaker_Validate(t *testing.T) {
	assert.NoError(t, Breaker{}.Validate())
	assert.Error(t, Breaker{Cooldown: -time.Second}.Validate())
}

func TestNew_WrapsOnlyBatchedExporters(t *testing.T) {
	p, err := New(context.Background(), Config{
		ServiceName:    "users",
		Exporter:       OTLPHTTP{Endpoint: "127.0.0.1:4318", Insecure: true},
		ExportBreaker:  Breaker{Failures: 3},
		MetricInterval: time.Hour,
		Batch:          Batch{BatchTimeout: time.Hour},
	})
	require.NoError(t, err)
	assert.True(t, p.breaker)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)

	p, err = New(context.Background(), Config{
		ServiceName:   "users",
		Exporter:      InMemory{},
		ExportBreaker: Breaker{Failures: 3},
	})
	require.NoError(t, err)
	assert.False(t, p.breaker)
	require.NoError(t, p.Shutdown(context.Background()))
}
