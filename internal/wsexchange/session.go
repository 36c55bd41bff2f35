package wsexchange

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// PingInterval is the fixed interval between keepalive Ping frames, per
// spec.md section 6.
const PingInterval = 20 * time.Second

// PingPayload is the fixed 15-byte ASCII ping payload, per spec.md section
// 6.
var PingPayload = []byte("OvenMediaEngine")

// ErrUpgradeFailed is returned by Upgrade when no interceptor can be
// resolved for the session. By the time it is returned, Upgrade has
// already replied 404 Not Found and set the exchange's status to Error.
var ErrUpgradeFailed = errors.New("no interceptor found for websocket upgrade")

// ErrInterceptorRefused is returned from OnFrameReceived when the resolved
// interceptor's OnDataReceived call returns false.
var ErrInterceptorRefused = errors.New("interceptor refused frame")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketSession adopts an upgrading HttpExchange, per spec.md section
// 4.7: it owns a WebSocketResponse writer, a ping stopwatch, and a mapping
// from session-info id to WebSocketSessionInfo, guarded by a mutex that is
// never held across an interceptor callback or a frame write.
type WebSocketSession struct {
	*HttpExchange

	conn     *websocket.Conn
	response *WebSocketResponse

	lastPingMu sync.Mutex
	lastPing   time.Time

	clientsMu       sync.Mutex
	clients         map[SessionInfoID]*WebSocketSessionInfo
	multipleClients bool
	nextInfoID      SessionInfoID
}

// Upgrade performs an RFC 6455 upgrade of an incoming HTTP request,
// resolves an interceptor from connection, and constructs the resulting
// WebSocketSession. When no interceptor resolves, Upgrade replies 404 Not
// Found itself and returns ErrUpgradeFailed; when the handshake fails, the
// gorilla Upgrader has already written an HTTP error response; when
// OnRequestPrepared fails, the upgraded connection is closed. Every failure
// leaves the exchange's status at Error.
func Upgrade(w http.ResponseWriter, r *http.Request, connection Connection, multipleClients bool) (*WebSocketSession, error) {
	exchange := NewHttpExchange(connection, r, w)

	session := &WebSocketSession{
		HttpExchange:    exchange,
		clients:         make(map[SessionInfoID]*WebSocketSessionInfo),
		multipleClients: multipleClients,
	}

	interceptor := connection.FindInterceptor(session)
	if interceptor == nil {
		_ = exchange.SetStatus(StatusError)
		http.Error(w, "not found", http.StatusNotFound)
		return nil, ErrUpgradeFailed
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = exchange.SetStatus(StatusError)
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}

	session.conn = conn
	session.response = NewWebSocketResponse(conn)

	if err := interceptor.OnRequestPrepared(session); err != nil {
		_ = exchange.SetStatus(StatusError)
		conn.Close()
		return nil, fmt.Errorf("interceptor OnRequestPrepared: %w", err)
	}

	if err := exchange.SetStatus(StatusExchanging); err != nil {
		conn.Close()
		return nil, err
	}
	session.resetPingClock()

	return session, nil
}

// Response returns the session's WebSocketResponse writer.
func (s *WebSocketSession) Response() *WebSocketResponse {
	return s.response
}

func (s *WebSocketSession) resetPingClock() {
	s.lastPingMu.Lock()
	defer s.lastPingMu.Unlock()
	s.lastPing = nowFunc()
}

// Ping sends the canned keepalive payload as a Ping frame if at least
// PingInterval has elapsed since the last send, per spec.md section 4.7.
// It is a no-op, returning success, if the interval has not yet elapsed.
func (s *WebSocketSession) Ping() error {
	s.lastPingMu.Lock()
	elapsed := nowFunc().Sub(s.lastPing)
	if elapsed < PingInterval {
		s.lastPingMu.Unlock()
		return nil
	}
	s.lastPing = nowFunc()
	s.lastPingMu.Unlock()

	n, err := s.response.Send(OpcodePing, PingPayload)
	if err != nil {
		return fmt.Errorf("send ping: %w", err)
	}
	if n < 1 {
		return errors.New("ping write wrote zero bytes")
	}
	return nil
}

// OnFrameReceived dispatches a single received frame to the session's
// resolved interceptor, per the opcode table in spec.md section 4.7. The
// interceptor is re-resolved on every call since it may change mid-session.
func (s *WebSocketSession) OnFrameReceived(opcode Opcode, payload []byte) error {
	interceptor := s.GetConnection().FindInterceptor(s)
	if interceptor == nil {
		_ = s.SetStatus(StatusError)
		return ErrUpgradeFailed
	}

	switch opcode {
	case OpcodeClose:
		interceptor.OnRequestCompleted(s)
		return s.SetStatus(StatusCompleted)
	case OpcodePing:
		_, err := s.response.Send(OpcodePong, payload)
		return err
	case OpcodePong:
		return nil
	default:
		if !interceptor.OnDataReceived(s, payload) {
			_ = s.SetStatus(StatusError)
			return ErrInterceptorRefused
		}
		return nil
	}
}

// Serve runs the session's read loop until the peer closes the connection,
// the interceptor fails a frame, or conn.ReadMessage returns an error. A
// close frame from the peer, which gorilla reports as a
// *websocket.CloseError, is dispatched to OnFrameReceived as OpcodeClose.
// It is the single-threaded-per-connection frame reader described in
// spec.md section 5. Serve sends no keepalive pings itself; Ping calls and
// interceptor-driven writes made from other goroutines only ever touch the
// connection through WebSocketResponse.Send, which serializes them.
func (s *WebSocketSession) Serve() error {
	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return s.OnFrameReceived(OpcodeClose, nil)
			}
			if s.GetStatus() == StatusCompleted {
				return nil
			}
			_ = s.SetStatus(StatusError)
			return err
		}

		if err := s.OnFrameReceived(Opcode(messageType), payload); err != nil {
			return err
		}
		if s.GetStatus().terminal() {
			return nil
		}
	}
}

// AddClient inserts info into the session's client map, keyed by info.ID.
// When multipleClients is false, insertion is refused if any client is
// already present, per spec.md Testable Property 7.
func (s *WebSocketSession) AddClient(info *WebSocketSessionInfo) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if !s.multipleClients && len(s.clients) > 0 {
		return false
	}
	s.clients[info.ID] = info
	return true
}

// NextSessionInfoID mints a fresh SessionInfoID for use by a caller
// constructing a new WebSocketSessionInfo to add to this session.
func (s *WebSocketSession) NextSessionInfoID() SessionInfoID {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.nextInfoID++
	return s.nextInfoID
}

// GetFirstClient returns an arbitrary client, or nil if none is attached.
func (s *WebSocketSession) GetFirstClient() *WebSocketSessionInfo {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for _, info := range s.clients {
		return info
	}
	return nil
}

// GetClient returns the client registered under id, or nil if absent.
func (s *WebSocketSession) GetClient(id SessionInfoID) *WebSocketSessionInfo {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return s.clients[id]
}

// GetClients returns a snapshot slice of every attached client. Fan-out
// callers must take this snapshot and release clientsMu before invoking
// any interceptor callback or frame write, per spec.md section 5.
func (s *WebSocketSession) GetClients() []*WebSocketSessionInfo {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	out := make([]*WebSocketSessionInfo, 0, len(s.clients))
	for _, info := range s.clients {
		out = append(out, info)
	}
	return out
}

// DeleteClient removes the client registered under id.
func (s *WebSocketSession) DeleteClient(id SessionInfoID) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, id)
}

// nowFunc is a seam for tests to control the ping clock without sleeping
// real wall-clock time.
var nowFunc = time.Now
