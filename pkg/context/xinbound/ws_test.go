package xinbound_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
	"github.com/sokolovgit/code-hive-sub000/pkg/context/xinbound"
	"github.com/sokolovgit/code-hive-sub000/pkg/errors/xerr"
)

type wsFailure struct {
	event    string
	clientID string
	err      error
	corr     xctx.Correlation
}

type wsRecorder struct {
	mu       sync.Mutex
	seen     []xctx.Correlation
	failures []wsFailure
}

func (r *wsRecorder) onError(ctx context.Context, event, clientID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, wsFailure{event: event, clientID: clientID, err: err, corr: xctx.GetAll(ctx)})
}

func (r *wsRecorder) snapshot() ([]xctx.Correlation, []wsFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]xctx.Correlation(nil), r.seen...), append([]wsFailure(nil), r.failures...)
}

// startWS 启动回显服务：users.echo 原样回写，users.fail 返回错误，users.panic 触发 panic。
func startWS(t *testing.T, opts ...xinbound.Option) (*websocket.Conn, *wsRecorder, *http.Response) {
	t.Helper()
	rec := &wsRecorder{}
	handle := func(ctx context.Context, conn *xinbound.WSConn, msg xinbound.WSMessage) error {
		rec.mu.Lock()
		rec.seen = append(rec.seen, xctx.GetAll(ctx))
		rec.mu.Unlock()
		switch msg.Event {
		case "users.fail":
			return xerr.NotFound("USER_NOT_FOUND", "user not found")
		case "users.panic":
			panic("handler exploded")
		}
		return conn.Send(msg.Event, json.RawMessage(msg.Data))
	}
	opts = append(opts, xinbound.WithWSErrorHandler(rec.onError))
	srv := httptest.NewServer(xinbound.NewWSHandler(handle, opts...))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?clientId=client-1"
	header := http.Header{}
	header.Set("X-Correlation-Id", "session-1")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, rec, resp
}

func readMessage(t *testing.T, conn *websocket.Conn) xinbound.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg xinbound.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWSHandler_PerMessageCorrelation(t *testing.T) {
	conn, rec, resp := startWS(t)
	assert.Equal(t, "session-1", resp.Header.Get("x-request-id"))

	for range 2 {
		require.NoError(t, conn.WriteJSON(xinbound.WSMessage{Event: "users.echo", Data: json.RawMessage(`{"id":"1"}`)}))
		msg := readMessage(t, conn)
		assert.Equal(t, "users.echo", msg.Event)
		assert.JSONEq(t, `{"id":"1"}`, string(msg.Data))
	}

	seen, failures := rec.snapshot()
	assert.Empty(t, failures)
	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0].RequestID, seen[1].RequestID)
	for _, c := range seen {
		assert.Equal(t, "session-1", c.CorrelationID)
		assert.Equal(t, xctx.ComponentWS, c.Component)
		assert.Equal(t, "/ws", c.Service)
		assert.Equal(t, "users.echo", c.Method)
		assert.Equal(t, "client-1", c.Tags[xinbound.TagClientID])
	}
}

func TestWSHandler_ErrorsReachHandler(t *testing.T) {
	conn, rec, _ := startWS(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"data": 1}))
	require.NoError(t, conn.WriteJSON(xinbound.WSMessage{Event: "users.fail"}))
	require.NoError(t, conn.WriteJSON(xinbound.WSMessage{Event: "users.panic"}))
	// 连接在错误与 panic 之后仍可用
	require.NoError(t, conn.WriteJSON(xinbound.WSMessage{Event: "users.echo"}))
	assert.Equal(t, "users.echo", readMessage(t, conn).Event)

	_, failures := rec.snapshot()
	require.Len(t, failures, 4)

	for _, f := range failures[:2] {
		assert.Equal(t, xinbound.EventInvalid, f.event)
		var de *xerr.Error
		require.True(t, errors.As(f.err, &de))
		assert.Equal(t, xinbound.CodeInvalidMessage, de.Code)
		assert.Equal(t, xerr.KindClientInput, de.Kind)
	}

	assert.Equal(t, "users.fail", failures[2].event)
	assert.Equal(t, "client-1", failures[2].clientID)
	assert.Equal(t, "users.fail", failures[2].corr.Method)
	assert.Equal(t, http.StatusNotFound, xerr.StatusOf(failures[2].err))

	assert.Equal(t, "users.panic", failures[3].event)
	assert.Contains(t, failures[3].err.Error(), "handler exploded")
}

func TestWSHandler_ServerSpanPerMessage(t *testing.T) {
	tracer, exp := newTracer(t)
	conn, rec, _ := startWS(t, xinbound.WithTracer(tracer))

	require.NoError(t, conn.WriteJSON(xinbound.WSMessage{Event: "users.echo"}))
	readMessage(t, conn)

	// span 在回写之后才结束
	require.Eventually(t, func() bool { return len(exp.GetSpans()) == 1 }, 5*time.Second, 10*time.Millisecond)
	seen, _ := rec.snapshot()
	require.Len(t, seen, 1)
	spans := exp.GetSpans()
	assert.Equal(t, "ws users.echo", spans[0].Name)
	assert.Equal(t, spans[0].SpanContext.TraceID().String(), seen[0].TraceID)
}

func TestWSHandler_OriginCheck(t *testing.T) {
	srv := httptest.NewServer(xinbound.NewWSHandler(
		func(context.Context, *xinbound.WSConn, xinbound.WSMessage) error { return nil },
		xinbound.WithWSOriginCheck(func(origin string) bool { return origin == "https://app.example" }),
		xinbound.WithLogger(nil),
	))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	header.Set("Origin", "https://app.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}
