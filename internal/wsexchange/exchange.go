// Package wsexchange implements the HTTP exchange abstraction and the
// WebSocket session layered on top of it: an upgrade handshake, framed
// I/O, ping keepalive, and multi-client fan-out dispatched to application
// interceptors.
package wsexchange

import (
	"errors"
	"net/http"
	"sync"
)

// Status is an HttpExchange's monotone lifecycle tag.
type Status int

const (
	StatusInit Status = iota
	StatusExchanging
	StatusCompleted
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "Init"
	case StatusExchanging:
		return "Exchanging"
	case StatusCompleted:
		return "Completed"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// terminal reports whether s is a status from which no further transition
// is permitted.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ErrTerminal is returned when an operation is attempted against an
// Exchange whose status has already reached Completed or Error.
var ErrTerminal = errors.New("exchange is in a terminal status")

// Connection is the interface consumed by HttpExchange and WebSocketSession
// to resolve the application-level handler for an exchange.
type Connection interface {
	FindInterceptor(session *WebSocketSession) Interceptor
}

// HttpExchange pairs a request and response with a monotone status, per
// spec.md section 4.6. SetStatus rejects any transition attempted after
// the status has gone terminal, so a late frame or body arrival on a
// completed or errored exchange is rejected rather than silently applied.
type HttpExchange struct {
	mu         sync.Mutex
	connection Connection
	request    *http.Request
	response   http.ResponseWriter
	status     Status
}

// NewHttpExchange constructs an HttpExchange in the Init status.
func NewHttpExchange(connection Connection, request *http.Request, response http.ResponseWriter) *HttpExchange {
	return &HttpExchange{
		connection: connection,
		request:    request,
		response:   response,
		status:     StatusInit,
	}
}

// GetRequest returns the exchange's request.
func (e *HttpExchange) GetRequest() *http.Request {
	return e.request
}

// GetResponse returns the exchange's response writer.
func (e *HttpExchange) GetResponse() http.ResponseWriter {
	return e.response
}

// GetConnection returns the exchange's owning connection.
func (e *HttpExchange) GetConnection() Connection {
	return e.connection
}

// GetStatus returns the exchange's current status.
func (e *HttpExchange) GetStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetStatus transitions the exchange to status. It fails with ErrTerminal
// if the exchange has already reached a terminal status.
func (e *HttpExchange) SetStatus(status Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.terminal() {
		return ErrTerminal
	}
	e.status = status
	return nil
}
