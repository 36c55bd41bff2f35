package wsexchange

// Interceptor is the application-level handler dispatched to by a
// WebSocketSession, resolved fresh from the Connection on every frame in
// case it changes mid-session.
type Interceptor interface {
	// OnRequestPrepared is called once, after a successful upgrade.
	OnRequestPrepared(session *WebSocketSession) error
	// OnDataReceived is called for every non-control frame (Text, Binary,
	// Continuation). Returning false fails the session with Error.
	OnDataReceived(session *WebSocketSession, payload []byte) bool
	// OnRequestCompleted is called exactly once, when the peer sends a
	// ConnectionClose frame.
	OnRequestCompleted(session *WebSocketSession)
}
