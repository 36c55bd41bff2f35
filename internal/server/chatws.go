package server

import (
	"errors"
	"log/slog"
	"net/http"

	"originmesh/internal/chatapp"
	"originmesh/internal/wsexchange"
)

// chatConnection resolves every upgrade to the server's single chat
// Interceptor. The chat surface runs one room-keyed fan-out interceptor
// rather than a per-path registry of interceptors, so resolution never
// depends on the inbound session.
type chatConnection struct {
	interceptor *chatapp.Interceptor
}

func newChatConnection(interceptor *chatapp.Interceptor) *chatConnection {
	return &chatConnection{interceptor: interceptor}
}

func (c *chatConnection) FindInterceptor(session *wsexchange.WebSocketSession) wsexchange.Interceptor {
	if c.interceptor == nil {
		return nil
	}
	return c.interceptor
}

// chatWebsocketHandler upgrades an incoming request into a chat
// wsexchange.WebSocketSession and runs its read loop on its own goroutine,
// mirroring the one-goroutine-per-connection shape the original
// implementation's websocket dispatcher used.
func chatWebsocketHandler(conn wsexchange.Connection, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := wsexchange.Upgrade(w, r, conn, false)
		if err != nil {
			if errors.Is(err, wsexchange.ErrUpgradeFailed) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		go func() {
			if err := session.Serve(); err != nil && logger != nil {
				logger.Debug("chat websocket session ended", "error", err)
			}
		}()
	}
}
