package xinbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
	"github.com/sokolovgit/code-hive-sub000/pkg/errors/xerr"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xmetrics"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xtrace"
)

const (
	defaultWSReadLimit = 64 << 10

	// QueryClientID 握手 URL 中携带客户端标识的查询参数
	QueryClientID = "clientId"

	// TagClientID 客户端标识在关联上下文 Tags 中的 key
	TagClientID = "clientId"

	// EventInvalid 无法解析的消息使用的事件名
	EventInvalid = "invalid"

	// CodeInvalidMessage 无法解析的消息对应的错误码
	CodeInvalidMessage = "WS_INVALID_MESSAGE"
)

// WSMessage 入站与出站消息的信封。
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSConn 一个 WebSocket 连接，写操作并发安全。
type WSConn struct {
	conn     *websocket.Conn
	clientID string
	mu       sync.Mutex
}

// ClientID 返回客户端标识
func (c *WSConn) ClientID() string { return c.clientID }

// Send 向客户端发送一条消息
func (c *WSConn) Send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(WSMessage{Event: event, Data: raw})
}

// WSHandlerFunc 处理一条入站消息。ctx 携带该消息独立的关联上下文。
type WSHandlerFunc func(ctx context.Context, conn *WSConn, msg WSMessage) error

type wsHandler struct {
	o        *options
	handle   WSHandlerFunc
	upgrader websocket.Upgrader
}

// NewWSHandler 返回完成 WebSocket 升级并逐条分发消息的 http.Handler。
//
// 每条消息在独立的关联作用域中处理：新的 requestId，correlationId 沿用握手请求，
// service 为握手路径，method 为事件名，Tags 中带 clientId。
// handler 返回的错误交给 WithWSErrorHandler，不会写回客户端。
func NewWSHandler(handle WSHandlerFunc, opts ...Option) http.Handler {
	o := newOptions(opts)
	h := &wsHandler{o: o, handle: handle}
	if o.wsOrigin != nil {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return o.wsOrigin(r.Header.Get("Origin"))
		}
	}
	return h
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	base := h.o.newCorrelation(r.Header.Get, xctx.ComponentWS)
	clientID := r.URL.Query().Get(QueryClientID)
	if clientID == "" {
		clientID = xctx.GenerateRequestID()
	}

	respHeader := http.Header{}
	respHeader.Set(xtrace.HeaderRequestID, base.RequestID)
	conn, err := h.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade 已写出 HTTP 错误响应
		_ = xctx.Run(r.Context(), base, func(ctx context.Context) error {
			h.o.log().Warn(ctx, "websocket upgrade failed", xlog.ClientID(clientID), xlog.Err(err))
			return nil
		})
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(h.o.wsReadLimit)

	wc := &WSConn{conn: conn, clientID: clientID}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				_ = xctx.Run(r.Context(), base, func(ctx context.Context) error {
					h.o.log().Debug(ctx, "websocket closed", xlog.ClientID(clientID), xlog.Err(err))
					return nil
				})
			}
			return
		}
		h.dispatch(r.Context(), base, r.URL, wc, raw)
	}
}

func (h *wsHandler) dispatch(parent context.Context, base xctx.Correlation, u *url.URL, wc *WSConn, raw []byte) {
	var msg WSMessage
	parseErr := json.Unmarshal(raw, &msg)
	if parseErr != nil || msg.Event == "" {
		msg.Event = EventInvalid
	}

	c := base.Clone()
	c.RequestID = xctx.GenerateRequestID()
	c.Service = u.Path
	c.Method = msg.Event
	if c.Tags == nil {
		c.Tags = make(map[string]any, 1)
	}
	c.Tags[TagClientID] = wc.clientID

	_ = xctx.Run(parent, c, func(ctx context.Context) error {
		var err error
		if msg.Event == EventInvalid {
			err = xerr.ClientInput(CodeInvalidMessage, "message must be a JSON object with an event field")
			if parseErr != nil {
				err = xerr.Wrap(parseErr, xerr.KindClientInput, CodeInvalidMessage, "message is not valid JSON")
			}
		} else {
			err = h.safeServe(ctx, wc, msg)
		}
		if err != nil {
			h.onError(ctx, msg.Event, wc.clientID, err)
		}
		return nil
	})
}

// safeServe 将消息 handler 中的 panic 转为错误，连接继续处理后续消息。
func (h *wsHandler) safeServe(ctx context.Context, wc *WSConn, msg WSMessage) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = xerr.From(v)
		}
	}()
	return h.serve(ctx, wc, msg)
}

func (h *wsHandler) serve(ctx context.Context, wc *WSConn, msg WSMessage) error {
	run := func(ctx context.Context) error {
		m := xmetrics.Start(ctx, h.o.observer, xmetrics.Options{Operation: msg.Event})
		err := h.handle(ctx, wc, msg)
		m.End(xmetrics.Result{Err: err})
		return err
	}
	if h.o.tracer == nil {
		return run(ctx)
	}
	return h.o.tracer.Start(ctx, "ws "+msg.Event, run, xtrace.WithKind(xtrace.KindServer))
}

func (h *wsHandler) onError(ctx context.Context, event, clientID string, err error) {
	if h.o.wsOnError != nil {
		h.o.wsOnError(ctx, event, clientID, err)
		return
	}
	h.o.log().Error(ctx, "ws event failed", xlog.Event(event), xlog.ClientID(clientID), xlog.Err(err))
}
