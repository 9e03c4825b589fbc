package xsampling

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
)

func withTrace(t *testing.T, c xctx.Correlation) context.Context {
	t.Helper()
	ctx, err := xctx.WithStore(context.Background(), c)
	require.NoError(t, err)
	return ctx
}

func TestAlwaysNever(t *testing.T) {
	ctx := context.Background()
	for range 50 {
		assert.True(t, Always().ShouldSample(ctx))
		assert.False(t, Never().ShouldSample(ctx))
	}
	assert.Equal(t, Always(), Always())
	assert.NotEqual(t, Always(), Never())
}

func TestValidateRate(t *testing.T) {
	for _, r := range []float64{-0.1, 1.1, math.NaN(), math.Inf(1)} {
		_, err := NewRateSampler(r)
		assert.ErrorIs(t, err, ErrInvalidRate, "rate=%v", r)
		_, err = NewTraceIDRatio(r)
		assert.ErrorIs(t, err, ErrInvalidRate, "rate=%v", r)
	}
}

func TestRateSampler_Bounds(t *testing.T) {
	zero, err := NewRateSampler(0)
	require.NoError(t, err)
	one, err := NewRateSampler(1)
	require.NoError(t, err)
	for range 100 {
		assert.False(t, zero.ShouldSample(context.Background()))
		assert.True(t, one.ShouldSample(context.Background()))
	}
	assert.InDelta(t, 1.0, one.Rate(), 0)
}

func TestHashRatio_Range(t *testing.T) {
	for i := range 1000 {
		r := HashRatio(fmt.Sprintf("key-%d", i))
		assert.GreaterOrEqual(t, r, 0.0)
		assert.Less(t, r, 1.0)
	}
}

func TestTraceIDRatio_Deterministic(t *testing.T) {
	s, err := NewTraceIDRatio(0.5)
	require.NoError(t, err)

	for range 20 {
		tid := xctx.GenerateTraceID()
		ctx := withTrace(t, xctx.Correlation{TraceID: tid})
		first := s.ShouldSample(ctx)
		for range 5 {
			assert.Equal(t, first, s.ShouldSample(ctx))
			assert.Equal(t, first, s.SampleKey(tid))
		}
	}
}

func TestTraceIDRatio_ZeroAndOne(t *testing.T) {
	zero, err := NewTraceIDRatio(0)
	require.NoError(t, err)
	one, err := NewTraceIDRatio(1)
	require.NoError(t, err)

	tid := "4bf92f3577b34da6a3ce929d0e0e4736"
	ctx := withTrace(t, xctx.Correlation{TraceID: tid})
	assert.False(t, zero.ShouldSample(ctx))
	assert.True(t, one.ShouldSample(ctx))
}

func TestTraceIDRatio_Distribution(t *testing.T) {
	s, err := NewTraceIDRatio(0.3)
	require.NoError(t, err)

	const n = 20000
	hits := 0
	for i := range n {
		if s.SampleKey(fmt.Sprintf("%032x", i)) {
			hits++
		}
	}
	assert.InDelta(t, 0.3, float64(hits)/n, 0.03)
}

func TestKeyBased_EmptyKeyCallback(t *testing.T) {
	var calls int
	s, err := NewTraceIDRatio(0.5, WithOnEmptyKey(func() { calls++ }))
	require.NoError(t, err)

	s.ShouldSample(context.Background())
	assert.Equal(t, 1, calls)

	_, err = NewKeyBasedSampler(0.5, nil)
	assert.ErrorIs(t, err, ErrNilKeyFunc)
	_, err = NewKeyBasedSampler(0.5, xctx.TraceID, nil)
	assert.ErrorIs(t, err, ErrNilOption)
}

func TestParentBased(t *testing.T) {
	p, err := NewParentBased(Never())
	require.NoError(t, err)

	sampledParent := withTrace(t, xctx.Correlation{TraceID: "t", SpanID: "s", TraceFlags: "01"})
	assert.True(t, p.ShouldSample(sampledParent))

	droppedParent := withTrace(t, xctx.Correlation{TraceID: "t", SpanID: "s", TraceFlags: "00"})
	assert.False(t, p.ShouldSample(droppedParent))

	root := withTrace(t, xctx.Correlation{TraceID: "t"})
	assert.False(t, p.ShouldSample(root))
	assert.Equal(t, Never(), p.Root())

	_, err = NewParentBased(nil)
	assert.ErrorIs(t, err, ErrNilSampler)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
	}{
		{"always", AlwaysPolicy},
		{" NEVER ", NeverPolicy},
		{"0.25", Policy{Kind: PolicyRatio, Ratio: 0.25}},
		{"parent:0.1", Policy{Kind: PolicyParentRatio, Ratio: 0.1}},
		{"parentbased_ratio:1", Policy{Kind: PolicyParentRatio, Ratio: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := ParsePolicy(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}

	for _, bad := range []string{"", "sometimes", "1.5", "parent:-1", "parent:x"} {
		_, err := ParsePolicy(bad)
		assert.ErrorIs(t, err, ErrInvalidPolicy, "input %q", bad)
	}
}

func TestPolicy_Sampler(t *testing.T) {
	s, err := MustParsePolicy("parent:0.5").Sampler()
	require.NoError(t, err)
	assert.IsType(t, &ParentBasedSampler{}, s)

	s, err = AlwaysPolicy.Sampler()
	require.NoError(t, err)
	assert.Equal(t, Always(), s)

	_, err = Policy{Kind: PolicyKind(99)}.Sampler()
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestPolicy_OTel(t *testing.T) {
	tid, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	params := sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: tid, Name: "op"}

	zero, err := Policy{Kind: PolicyRatio, Ratio: 0}.OTel()
	require.NoError(t, err)
	assert.Equal(t, sdktrace.Drop, zero.ShouldSample(params).Decision)

	one, err := Policy{Kind: PolicyRatio, Ratio: 1}.OTel()
	require.NoError(t, err)
	assert.Equal(t, sdktrace.RecordAndSample, one.ShouldSample(params).Decision)
	assert.Contains(t, one.Description(), "XXHashTraceIDRatio")

	half, err := OTelTraceIDRatio(0.5)
	require.NoError(t, err)
	inner, err := NewTraceIDRatio(0.5)
	require.NoError(t, err)
	want := inner.SampleKey(tid.String())
	got := half.ShouldSample(params).Decision == sdktrace.RecordAndSample
	assert.Equal(t, want, got)

	pb, err := Policy{Kind: PolicyParentRatio, Ratio: 0}.OTel()
	require.NoError(t, err)
	assert.Contains(t, pb.Description(), "ParentBased")
}
