package xmetrics_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xmetrics"
)

func newTestMeterProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func attrValue(set attribute.Set, key string) string {
	v, ok := set.Value(attribute.Key(key))
	if !ok {
		return ""
	}
	return v.Emit()
}

func TestOTelObserver_RecordsCountAndDuration(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
	require.NoError(t, err)

	m := xmetrics.Start(context.Background(), obs, xmetrics.Options{
		Component: "http",
		Operation: "GET /users",
		Attrs:     []xmetrics.Attr{attribute.String("httpMethod", "GET"), {}},
	})
	m.End(xmetrics.Result{Attrs: []xmetrics.Attr{attribute.Int("statusCode", 200)}})

	metrics := collect(t, reader)

	total, ok := metrics["operation.total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, total.DataPoints, 1)
	dp := total.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)
	assert.Equal(t, "http", attrValue(dp.Attributes, "component"))
	assert.Equal(t, "GET /users", attrValue(dp.Attributes, "operation"))
	assert.Equal(t, "ok", attrValue(dp.Attributes, "status"))
	assert.Equal(t, "GET", attrValue(dp.Attributes, "httpMethod"))
	assert.Equal(t, "200", attrValue(dp.Attributes, "statusCode"))

	hist, ok := metrics["operation.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestOTelObserver_ErrorStatusAndIdempotentEnd(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp), xmetrics.WithNamespace("users"))
	require.NoError(t, err)

	m := obs.Start(context.Background(), xmetrics.Options{Operation: "CreateUser"})
	m.End(xmetrics.Result{Err: errors.New("boom")})
	m.End(xmetrics.Result{})

	total := collect(t, reader)["users.operation.total"].Data.(metricdata.Sum[int64])
	require.Len(t, total.DataPoints, 1)
	assert.Equal(t, int64(1), total.DataPoints[0].Value)
	assert.Equal(t, "error", attrValue(total.DataPoints[0].Attributes, "status"))
	assert.Equal(t, "unknown", attrValue(total.DataPoints[0].Attributes, "component"))
}

func TestOTelObserver_ExplicitStatusWins(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
	require.NoError(t, err)

	obs.Start(context.Background(), xmetrics.Options{}).
		End(xmetrics.Result{Status: xmetrics.StatusOK, Err: errors.New("not found is fine")})

	total := collect(t, reader)["operation.total"].Data.(metricdata.Sum[int64])
	require.Len(t, total.DataPoints, 1)
	assert.Equal(t, "ok", attrValue(total.DataPoints[0].Attributes, "status"))
	assert.Equal(t, "unknown", attrValue(total.DataPoints[0].Attributes, "operation"))
}

func TestOTelObserver_ComponentFromCorrelation(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
	require.NoError(t, err)

	err = xctx.Run(context.Background(), xctx.Correlation{Component: xctx.ComponentRPC}, func(ctx context.Context) error {
		obs.Start(ctx, xmetrics.Options{Operation: "GetUser"}).End(xmetrics.Result{})
		return nil
	})
	require.NoError(t, err)

	total := collect(t, reader)["operation.total"].Data.(metricdata.Sum[int64])
	assert.Equal(t, "rpc", attrValue(total.DataPoints[0].Attributes, "component"))
}

func TestOTelObserver_RecordsAfterCancel(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	m := obs.Start(ctx, xmetrics.Options{Operation: "slow"})
	cancel()
	m.End(xmetrics.Result{Err: context.Canceled})

	total := collect(t, reader)["operation.total"].Data.(metricdata.Sum[int64])
	require.Len(t, total.DataPoints, 1)
}

func TestNewOTelObserver_Buckets(t *testing.T) {
	_, err := xmetrics.NewOTelObserver(xmetrics.WithBuckets(0.1, 0.05))
	assert.ErrorIs(t, err, xmetrics.ErrInvalidBuckets)

	mp, reader := newTestMeterProvider(t)
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp), xmetrics.WithBuckets(0.01, 0.1, 1))
	require.NoError(t, err)
	obs.Start(context.Background(), xmetrics.Options{Operation: "x"}).End(xmetrics.Result{})

	hist := collect(t, reader)["operation.duration"].Data.(metricdata.Histogram[float64])
	assert.Equal(t, []float64{0.01, 0.1, 1}, hist.DataPoints[0].Bounds)
}

type nilObserver struct{}

func (nilObserver) Start(context.Context, xmetrics.Options) xmetrics.Measurement { return nil }

func TestStart_NilSafety(t *testing.T) {
	assert.Equal(t, xmetrics.NoopMeasurement{}, xmetrics.Start(context.Background(), nil, xmetrics.Options{}))
	assert.Equal(t, xmetrics.NoopMeasurement{}, xmetrics.Start(context.Background(), nilObserver{}, xmetrics.Options{}))

	//nolint:staticcheck // nil context 由 Start 兜底
	m := xmetrics.Start(nil, xmetrics.NoopObserver{}, xmetrics.Options{})
	assert.NotPanics(t, func() { m.End(xmetrics.Result{}) })
}

func TestOTelObserver_OperationOverride(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
	require.NoError(t, err)

	obs.Start(context.Background(), xmetrics.Options{Operation: "GET /users/42"}).
		End(xmetrics.Result{Operation: "GET /users/{id}"})

	total := collect(t, reader)["operation.total"].Data.(metricdata.Sum[int64])
	require.Len(t, total.DataPoints, 1)
	assert.Equal(t, "GET /users/{id}", attrValue(total.DataPoints[0].Attributes, "operation"))
}
