package wsexchange

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type stubInterceptor struct {
	mu              sync.Mutex
	preparedCount   int
	completedCount  int
	dataReceived    [][]byte
	refuseData      bool
}

func (s *stubInterceptor) OnRequestPrepared(session *WebSocketSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preparedCount++
	return nil
}

func (s *stubInterceptor) OnDataReceived(session *WebSocketSession, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataReceived = append(s.dataReceived, payload)
	return !s.refuseData
}

func (s *stubInterceptor) OnRequestCompleted(session *WebSocketSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completedCount++
}

type stubConnection struct {
	interceptor Interceptor
}

func (c *stubConnection) FindInterceptor(session *WebSocketSession) Interceptor {
	return c.interceptor
}

type nilConnection struct{}

func (nilConnection) FindInterceptor(session *WebSocketSession) Interceptor { return nil }

func wsURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http")
}

func TestUpgradeSucceedsAndInvokesOnRequestPrepared(t *testing.T) {
	interceptor := &stubInterceptor{}
	conn := &stubConnection{interceptor: interceptor}

	var captured *WebSocketSession
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := Upgrade(w, r, conn, false)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		captured = session
		go session.Serve()
	}))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err != nil {
		t.Fatalf("client dial: %v", err)
	}
	defer ws.Close()

	time.Sleep(20 * time.Millisecond)

	if interceptor.preparedCount != 1 {
		t.Errorf("expected OnRequestPrepared called once, got %d", interceptor.preparedCount)
	}
	if captured == nil {
		t.Fatal("expected session to be captured")
	}
	if captured.GetStatus() != StatusExchanging {
		t.Errorf("expected status Exchanging, got %s", captured.GetStatus())
	}
}

func TestUpgradeFailsWithoutInterceptor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := Upgrade(w, r, nilConnection{}, false)
		if err != ErrUpgradeFailed {
			t.Errorf("expected ErrUpgradeFailed, got %v", err)
		}
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPingEchoesPongPayload(t *testing.T) {
	interceptor := &stubInterceptor{}
	conn := &stubConnection{interceptor: interceptor}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := Upgrade(w, r, conn, false)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		go session.Serve()
	}))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err != nil {
		t.Fatalf("client dial: %v", err)
	}
	defer ws.Close()

	pongReceived := make(chan string, 1)
	ws.SetPongHandler(func(appData string) error {
		pongReceived <- appData
		return nil
	})

	if err := ws.WriteMessage(websocket.PingMessage, []byte("abc")); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, _, _ = ws.ReadMessage()

	select {
	case got := <-pongReceived:
		if got != "abc" {
			t.Errorf("expected pong payload %q, got %q", "abc", got)
		}
	default:
		t.Error("expected a pong frame echoing the ping payload")
	}
}

func TestSessionAddClientSingleClientFlag(t *testing.T) {
	session := &WebSocketSession{clients: make(map[SessionInfoID]*WebSocketSessionInfo), multipleClients: false}

	first := NewWebSocketSessionInfo(1, "#v#a", "v", "a", "s1", &url.URL{})
	second := NewWebSocketSessionInfo(2, "#v#a", "v", "a", "s2", &url.URL{})

	if !session.AddClient(first) {
		t.Fatal("expected first client to be admitted")
	}
	if session.AddClient(second) {
		t.Error("expected second client to be refused when multipleClients is false")
	}
	if len(session.GetClients()) != 1 {
		t.Errorf("expected exactly 1 client, got %d", len(session.GetClients()))
	}
}

func TestSessionAddClientMultipleClientsAllowed(t *testing.T) {
	session := &WebSocketSession{clients: make(map[SessionInfoID]*WebSocketSessionInfo), multipleClients: true}

	for i := 1; i <= 3; i++ {
		info := NewWebSocketSessionInfo(SessionInfoID(i), "#v#a", "v", "a", "s", &url.URL{})
		if !session.AddClient(info) {
			t.Fatalf("expected client %d to be admitted", i)
		}
	}
	if len(session.GetClients()) != 3 {
		t.Errorf("expected 3 clients, got %d", len(session.GetClients()))
	}

	session.DeleteClient(2)
	if session.GetClient(2) != nil {
		t.Error("expected client 2 to be removed")
	}
	if len(session.GetClients()) != 2 {
		t.Errorf("expected 2 clients after delete, got %d", len(session.GetClients()))
	}
}

func TestPingRespectsInterval(t *testing.T) {
	originalNow := nowFunc
	defer func() { nowFunc = originalNow }()

	current := time.Unix(0, 0)
	nowFunc = func() time.Time { return current }

	exchange := NewHttpExchange(nil, nil, nil)
	session := &WebSocketSession{
		HttpExchange: exchange,
		clients:      make(map[SessionInfoID]*WebSocketSessionInfo),
	}
	session.resetPingClock()

	server, client := newFakeWSPipe(t)
	defer server.Close()
	defer client.Close()
	session.conn = server
	session.response = NewWebSocketResponse(server)

	current = current.Add(10 * time.Second)
	if err := session.Ping(); err != nil {
		t.Fatalf("ping before interval: %v", err)
	}

	current = current.Add(11 * time.Second)
	if err := session.Ping(); err != nil {
		t.Fatalf("ping after interval: %v", err)
	}
}

func TestOnFrameReceivedConnectionCloseIsTerminal(t *testing.T) {
	interceptor := &stubInterceptor{}
	conn := &stubConnection{interceptor: interceptor}
	exchange := NewHttpExchange(conn, nil, nil)
	_ = exchange.SetStatus(StatusExchanging)

	session := &WebSocketSession{
		HttpExchange: exchange,
		clients:      make(map[SessionInfoID]*WebSocketSessionInfo),
	}

	if err := session.OnFrameReceived(OpcodeClose, nil); err != nil {
		t.Fatalf("OnFrameReceived close: %v", err)
	}
	if interceptor.completedCount != 1 {
		t.Errorf("expected OnRequestCompleted called once, got %d", interceptor.completedCount)
	}
	if session.GetStatus() != StatusCompleted {
		t.Errorf("expected status Completed, got %s", session.GetStatus())
	}
}

func TestOnFrameReceivedDataRefusalSetsError(t *testing.T) {
	interceptor := &stubInterceptor{refuseData: true}
	conn := &stubConnection{interceptor: interceptor}
	exchange := NewHttpExchange(conn, nil, nil)
	_ = exchange.SetStatus(StatusExchanging)

	session := &WebSocketSession{
		HttpExchange: exchange,
		clients:      make(map[SessionInfoID]*WebSocketSessionInfo),
	}

	err := session.OnFrameReceived(OpcodeText, []byte("hello"))
	if err != ErrInterceptorRefused {
		t.Fatalf("expected ErrInterceptorRefused, got %v", err)
	}
	if session.GetStatus() != StatusError {
		t.Errorf("expected status Error, got %s", session.GetStatus())
	}
}

// newFakeWSPipe returns a connected pair of *websocket.Conn over an
// in-memory pipe, for tests that need a writable connection without a real
// network round trip.
func newFakeWSPipe(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	serverConnCh := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	t.Cleanup(server.Close)

	client, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err != nil {
		t.Fatalf("client dial: %v", err)
	}
	serverConn := <-serverConnCh
	return serverConn, client
}
