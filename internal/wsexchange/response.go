package wsexchange

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Opcode is the RFC 6455 frame opcode, re-exported in the exchange layer's
// own vocabulary so callers never need to import gorilla/websocket
// directly.
type Opcode int

const (
	OpcodeText   Opcode = websocket.TextMessage
	OpcodeBinary Opcode = websocket.BinaryMessage
	OpcodeClose  Opcode = websocket.CloseMessage
	OpcodePing   Opcode = websocket.PingMessage
	OpcodePong   Opcode = websocket.PongMessage
)

// WebSocketResponse frames a payload under a given opcode and writes it to
// the underlying transport, per spec.md section 4.8. It serializes
// concurrent callers so Ping calls and the frame-dispatch path can both
// write to the same connection without corrupting a frame.
type WebSocketResponse struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketResponse wraps conn.
func NewWebSocketResponse(conn *websocket.Conn) *WebSocketResponse {
	return &WebSocketResponse{conn: conn}
}

// Send frames payload under opcode and writes it. It returns the number of
// bytes written, or 0 and a non-nil error on failure.
func (r *WebSocketResponse) Send(opcode Opcode, payload []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.conn.WriteMessage(int(opcode), payload); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// Close sends a close control frame and closes the underlying connection.
func (r *WebSocketResponse) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return r.conn.Close()
}
