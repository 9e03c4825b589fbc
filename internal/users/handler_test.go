package users_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sokolovgit/code-hive-sub000/internal/users"
	"github.com/sokolovgit/code-hive-sub000/pkg/context/xinbound"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xobs"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xotel"
	"github.com/sokolovgit/code-hive-sub000/pkg/util/xlru"
)

type server struct {
	*httptest.Server
	spans *tracetest.InMemoryExporter
}

func newServer(t *testing.T) *server {
	t.Helper()
	spans := tracetest.NewInMemoryExporter()
	obs, err := xobs.New(context.Background(), xobs.DefaultConfig("test", "users"),
		xobs.WithLogOutput(io.Discard),
		xobs.WithExporter(xotel.InMemory{Spans: spans, Reader: sdkmetric.NewManualReader()}),
	)
	require.NoError(t, err)

	repo, err := users.NewCachedRepository(users.NewMemoryRepository(), xlru.Config{Size: 16, TTL: time.Minute})
	require.NoError(t, err)
	metrics := users.NewMetrics("users")
	metrics.RegisterCache("users", repo.Stats)

	svc := users.NewService(repo, &seqIDs{}, users.WithTracer(obs.Tracer()), users.WithLogger(obs.Logger()))
	srv := httptest.NewServer(users.NewHandler(svc, obs, metrics).Routes())
	t.Cleanup(func() {
		srv.Close()
		repo.Close()
		_ = obs.Shutdown(context.Background())
	})
	return &server{Server: srv, spans: spans}
}

func (s *server) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "test-req")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func TestHandler_CRUD(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodPost, "/users", `{"email":"ada@example.com","name":"Ada"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	assert.Equal(t, "/users/"+id, resp.Header.Get("Location"))
	assert.Equal(t, "test-req", resp.Header.Get("x-request-id"))

	resp, body = s.do(t, http.MethodGet, "/users/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada", body["name"])

	resp, body = s.do(t, http.MethodPatch, "/users/"+id, `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "admin", body["role"])

	resp, body = s.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])

	resp, _ = s.do(t, http.MethodDelete, "/users/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/users/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, users.CodeUserNotFound, body["code"])
}

func TestHandler_Errors(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodPost, "/users", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_JSON", body["code"])

	resp, body = s.do(t, http.MethodPost, "/users", `{"email":"a@example.com","name":"A","admin":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_JSON", body["code"])

	resp, body = s.do(t, http.MethodPost, "/users", `{"email":"bad","name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, users.CodeInvalidInput, body["code"])

	resp, _ = s.do(t, http.MethodPost, "/users", `{"email":"a@example.com","name":"A"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body = s.do(t, http.MethodPost, "/users", `{"email":"a@example.com","name":"B"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, users.CodeEmailTaken, body["code"])

	resp, body = s.do(t, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ROUTE_NOT_FOUND", body["code"])

	resp, _ = s.do(t, http.MethodPut, "/users/x", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	s.do(t, http.MethodGet, "/users/missing", "")
	s.do(t, http.MethodGet, "/users/missing", "")

	resp, err := s.Client().Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `users_http_requests_total{method="GET",route="/users/{id}",status="404"} 2`)
	assert.Contains(t, text, "users_http_request_duration_seconds_bucket")
	assert.Contains(t, text, "users_cache_misses_total 2")
	assert.Contains(t, text, "go_goroutines")

	// /healthz 与 /metrics 不产生 span
	for _, sp := range s.spans.GetSpans() {
		assert.NotEqual(t, "GET /healthz", sp.Name)
	}
}

func TestHandler_WebSocket(t *testing.T) {
	s := newServer(t)
	resp, body := s.do(t, http.MethodPost, "/users", `{"email":"ws@example.com","name":"WS"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?clientId=c-1"
	conn, wsResp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer wsResp.Body.Close()
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	roundTrip := func(event string, data any) xinbound.WSMessage {
		t.Helper()
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(xinbound.WSMessage{Event: event, Data: raw}))
		var reply xinbound.WSMessage
		require.NoError(t, conn.ReadJSON(&reply))
		return reply
	}

	reply := roundTrip(users.EventGet, map[string]string{"id": id})
	assert.Equal(t, users.EventGet, reply.Event)
	var u users.User
	require.NoError(t, json.Unmarshal(reply.Data, &u))
	assert.Equal(t, "ws@example.com", u.Email)

	reply = roundTrip(users.EventList, nil)
	assert.Equal(t, users.EventList, reply.Event)
	var list []users.User
	require.NoError(t, json.Unmarshal(reply.Data, &list))
	assert.Len(t, list, 1)

	reply = roundTrip(users.EventGet, map[string]string{"id": "missing"})
	assert.Equal(t, users.EventError, reply.Event)
	assert.Contains(t, string(reply.Data), users.CodeUserNotFound)

	reply = roundTrip("users.drop", nil)
	assert.Equal(t, users.EventError, reply.Event)
	assert.Contains(t, string(reply.Data), "UNKNOWN_EVENT")
}
