package server

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"originmesh/internal/chatapp"
	"originmesh/internal/orchestrator"
)

func newTestHandler(t *testing.T) (*orchestrator.Orchestrator, *chatapp.Interceptor) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := orchestrator.NewRegistry(logger)
	orch := orchestrator.New(registry, logger)
	if err := orch.ApplyOriginMap(context.Background(), []orchestrator.HostConfig{
		{
			Name:    "lobby.example.com",
			Domains: []string{"lobby.example.com"},
			Origins: []orchestrator.OriginConfig{
				{Location: "/live/", Scheme: "rtmp", URLs: []string{"rtmp://origin.example.com/live/"}},
			},
		},
	}); err != nil {
		t.Fatalf("ApplyOriginMap error: %v", err)
	}
	return orch, chatapp.NewInterceptor(logger)
}

func TestNewReturnsErrorWhenOrchestratorNil(t *testing.T) {
	t.Parallel()

	srv, err := New(nil, nil, Config{})
	if err == nil {
		t.Fatalf("expected error when orchestrator is nil, got server: %#v", srv)
	}
}

func TestHealthzReturnsOK(t *testing.T) {
	orch, chat := newTestHandler(t)
	srv, err := New(orch, chat, Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestAdminGetVirtualHost(t *testing.T) {
	orch, chat := newTestHandler(t)
	srv, err := New(orch, chat, Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/vhosts/lobby.example.com", nil)
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "lobby.example.com") {
		t.Fatalf("expected response to mention vhost name, got %q", rec.Body.String())
	}
}

func TestAdminGetVirtualHostMissing(t *testing.T) {
	orch, chat := newTestHandler(t)
	srv, err := New(orch, chat, Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/vhosts/unknown.example.com", nil)
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestAdminCreateAndDeleteApplication(t *testing.T) {
	orch, chat := newTestHandler(t)
	srv, err := New(orch, chat, Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/vhosts/lobby.example.com/applications", strings.NewReader(`{"name":"live"}`))
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"composed_name"`) {
		t.Fatalf("expected application response body, got %q", rec.Body.String())
	}

	vhost, ok := orch.VirtualHost("lobby.example.com")
	if !ok {
		t.Fatal("expected vhost to exist")
	}
	var appID orchestrator.ApplicationID
	for id := range vhost.Apps {
		appID = id
	}

	delRec := httptest.NewRecorder()
	delReq := httptest.NewRequest(http.MethodDelete, "/api/vhosts/lobby.example.com/applications/"+strconv.FormatUint(uint64(appID), 10), nil)
	srv.httpServer.Handler.ServeHTTP(delRec, delReq)

	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", delRec.Code)
	}
}

func TestRateLimitMiddlewareThrottlesAdminMutations(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{AdminLimit: 1, AdminWindow: time.Minute})
	handler := rateLimitMiddleware(rl, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req1 := httptest.NewRequest(http.MethodPost, "/api/vhosts/lobby/applications", nil)
	req1.RemoteAddr = "198.51.100.1:1234"
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusNoContent {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/vhosts/lobby/applications", nil)
	req2.RemoteAddr = "198.51.100.1:5678"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestRateLimitMiddlewareIgnoresReadEndpoints(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{AdminLimit: 1, AdminWindow: time.Minute})
	handler := rateLimitMiddleware(rl, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/vhosts/lobby", nil)
		req.RemoteAddr = "198.51.100.2:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected read requests to bypass admin rate limiting, got %d on attempt %d", rec.Code, i)
		}
	}
}

type hijackableResponseRecorder struct {
	*httptest.ResponseRecorder
	conn      net.Conn
	rw        *bufio.ReadWriter
	handshake bytes.Buffer
	hijacked  bool
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func newHijackableResponseRecorder() (*hijackableResponseRecorder, net.Conn) {
	serverConn, clientConn := net.Pipe()
	recorder := &hijackableResponseRecorder{ResponseRecorder: httptest.NewRecorder(), conn: serverConn}
	writer := bufio.NewWriter(io.MultiWriter(&recorder.handshake, discardWriter{}))
	recorder.rw = bufio.NewReadWriter(bufio.NewReader(serverConn), writer)
	return recorder, clientConn
}

func (r *hijackableResponseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.hijacked = true
	return r.conn, r.rw, nil
}

func (r *hijackableResponseRecorder) Close() error {
	return r.conn.Close()
}

func TestChatWebsocketUpgradesThroughMiddleware(t *testing.T) {
	orch, chat := newTestHandler(t)
	srv, err := New(orch, chat, Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	rw, clientConn := newHijackableResponseRecorder()
	defer rw.Close()
	defer clientConn.Close()

	srv.httpServer.Handler.ServeHTTP(rw, req)

	if rw.Result().StatusCode == http.StatusBadRequest {
		t.Fatalf("expected websocket upgrade, got 400: %s", rw.Body.String())
	}
	if !rw.hijacked {
		t.Fatal("expected websocket handler to hijack the connection")
	}

	handshake := rw.handshake.String()
	if !strings.Contains(handshake, "101 Switching Protocols") {
		t.Fatalf("expected websocket upgrade, got %q", strings.TrimSpace(handshake))
	}
}
