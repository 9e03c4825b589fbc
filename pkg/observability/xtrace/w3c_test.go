package xtrace_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xtrace"
)

const (
	testTraceID = "0af7651916cd43dd8448eb211c80319c"
	testSpanID  = "b7ad6b7169203331"
	testTP      = "00-" + testTraceID + "-" + testSpanID + "-01"
)

func TestParseTraceparent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"有效 v00", testTP, true},
		{"大写", "00-0AF7651916CD43DD8448EB211C80319C-B7AD6B7169203331-01", true},
		{"未来版本带扩展", "01-" + testTraceID + "-" + testSpanID + "-01-extra", true},
		{"v00 带扩展", testTP + "-extra", false},
		{"版本 ff", "ff-" + testTraceID + "-" + testSpanID + "-01", false},
		{"全零 traceId", "00-00000000000000000000000000000000-" + testSpanID + "-01", false},
		{"全零 spanId", "00-" + testTraceID + "-0000000000000000-01", false},
		{"分隔符错误", "00_" + testTraceID + "-" + testSpanID + "-01", false},
		{"过短", "00-abc-def-01", false},
		{"非十六进制", "00-" + testTraceID + "-" + "zzzzzzzzzzzzzzzz" + "-01", false},
		{"空", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, ok := xtrace.ParseTraceparent(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, testTraceID, tp.TraceID)
				assert.Equal(t, testSpanID, tp.SpanID)
				assert.True(t, tp.Sampled())
			}
		})
	}
}

func TestFormatTraceparent(t *testing.T) {
	assert.Equal(t, testTP, xtrace.FormatTraceparent(testTraceID, testSpanID, "01"))
	assert.Equal(t, "00-"+testTraceID+"-"+testSpanID+"-00", xtrace.FormatTraceparent(testTraceID, testSpanID, ""))
	assert.Equal(t, testTP, xtrace.FormatTraceparent("0AF7651916CD43DD8448EB211C80319C", testSpanID, "01"))
	assert.Empty(t, xtrace.FormatTraceparent("bad", testSpanID, "01"))
	assert.Empty(t, xtrace.FormatTraceparent(testTraceID, "bad", "01"))

	tp, ok := xtrace.ParseTraceparent(xtrace.FormatTraceparent(testTraceID, testSpanID, "00"))
	require.True(t, ok)
	assert.False(t, tp.Sampled())
}

func TestExtractFromHTTPHeader(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   xtrace.TraceInfo
	}{
		{
			name: "nil 安全",
			want: xtrace.TraceInfo{},
		},
		{
			name:   "x-request-id 优先",
			header: map[string]string{"X-Request-ID": "abc-123", "X-Correlation-ID": "corr-1"},
			want:   xtrace.TraceInfo{RequestID: "abc-123", CorrelationID: "corr-1"},
		},
		{
			name:   "回退到 x-correlation-id",
			header: map[string]string{"X-Correlation-ID": "corr-1"},
			want:   xtrace.TraceInfo{RequestID: "corr-1", CorrelationID: "corr-1"},
		},
		{
			name:   "traceparent",
			header: map[string]string{"traceparent": testTP, "tracestate": "k=v"},
			want:   xtrace.TraceInfo{TraceID: testTraceID, SpanID: testSpanID, TraceFlags: "01", Tracestate: "k=v"},
		},
		{
			name:   "x-traceparent 作为第二来源",
			header: map[string]string{"traceparent": "garbage", "X-Traceparent": testTP},
			want:   xtrace.TraceInfo{TraceID: testTraceID, SpanID: testSpanID, TraceFlags: "01"},
		},
		{
			name: "traceparent 无效时回退离散字段",
			header: map[string]string{
				"traceparent":      "garbage",
				"X-TraceId":        testTraceID,
				"X-SpanId":         testSpanID,
				"X-Parent-Span-Id": "1111111111111111",
			},
			want: xtrace.TraceInfo{TraceID: testTraceID, SpanID: testSpanID, ParentSpanID: "1111111111111111"},
		},
		{
			name:   "离散 traceId 非法则全部留空",
			header: map[string]string{"X-Trace-Id": "nope", "X-Span-Id": testSpanID},
			want:   xtrace.TraceInfo{},
		},
		{
			name:   "离散 spanId 非法仅丢弃该字段",
			header: map[string]string{"X-Trace-Id": testTraceID, "X-Span-Id": "nope"},
			want:   xtrace.TraceInfo{TraceID: testTraceID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h http.Header
			if tt.header != nil {
				h = make(http.Header)
				for k, v := range tt.header {
					h.Set(k, v)
				}
			}
			assert.Equal(t, tt.want, xtrace.ExtractFromHTTPHeader(h))
		})
	}
}

func TestExtractFromMetadata(t *testing.T) {
	assert.True(t, xtrace.ExtractFromMetadata(nil).IsEmpty())

	md := metadata.Pairs("x-request-id", " req-1 ", "x-traceparent", testTP)
	got := xtrace.ExtractFromMetadata(md)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, testTraceID, got.TraceID)
	assert.True(t, got.HasTrace())

	c := got.Correlation()
	assert.Equal(t, "req-1", c.CorrelationID)
	assert.Equal(t, testSpanID, c.SpanID)
}
