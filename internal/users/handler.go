package users

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xinbound"
	"github.com/sokolovgit/code-hive-sub000/pkg/errors/xerr"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xobs"
)

// WebSocket 事件
const (
	EventGet   = "users.get"
	EventList  = "users.list"
	EventError = "users.error"
)

const (
	maxBodyBytes    = 1 << 20
	codeInvalidJSON = "INVALID_JSON"
	codeUnknownEvt  = "UNKNOWN_EVENT"
)

// Handler 用户服务的 HTTP 与 WebSocket 入口
type Handler struct {
	svc     *Service
	obs     *xobs.Observability
	metrics *Metrics
}

// NewHandler 创建 Handler，metrics 为 nil 时不挂载 /metrics。
func NewHandler(svc *Service, obs *xobs.Observability, metrics *Metrics) *Handler {
	return &Handler{svc: svc, obs: obs, metrics: metrics}
}

// Routes 返回完整路由
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.obs.HTTPMiddleware())
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.fail(w, req, xerr.NotFound("ROUTE_NOT_FOUND", "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		h.fail(w, req, xerr.ClientInput("METHOD_NOT_ALLOWED", "method not allowed", xerr.WithStatus(http.StatusMethodNotAllowed)))
	})

	r.Get("/healthz", h.health)
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	r.Method(http.MethodGet, "/ws", h.obs.WSHandler(h.serveWS))
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list, "count": len(list)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/users/"+u.ID)
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.obs.Reporter().HTTP(w, r, err)
}

type getRequest struct {
	ID string `json:"id"`
}

// serveWS 处理一条 WebSocket 消息。失败时先回写 users.error，再把错误交给上报器。
func (h *Handler) serveWS(ctx context.Context, conn *xinbound.WSConn, msg xinbound.WSMessage) error {
	var (
		event = msg.Event
		data  any
		err   error
	)
	switch msg.Event {
	case EventGet:
		var req getRequest
		if err = json.Unmarshal(msg.Data, &req); err != nil || req.ID == "" {
			err = xerr.ClientInput(codeInvalidJSON, "data.id is required", xerr.WithCause(err))
			break
		}
		data, err = h.svc.Get(ctx, req.ID)
	case EventList:
		data, err = h.svc.List(ctx)
	default:
		err = xerr.ClientInput(codeUnknownEvt, "unknown event", xerr.WithMeta("event", msg.Event))
	}
	if err != nil {
		de := xerr.From(err)
		if sendErr := conn.Send(EventError, de.HTTPBody()); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return err
	}
	return conn.Send(event, data)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return xerr.ClientInput(codeInvalidJSON, "request body too large",
				xerr.WithStatus(http.StatusRequestEntityTooLarge), xerr.WithCause(err))
		}
		if errors.Is(err, io.EOF) {
			return xerr.ClientInput(codeInvalidJSON, "request body is empty")
		}
		return xerr.ClientInput(codeInvalidJSON, "malformed JSON body", xerr.WithCause(err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
