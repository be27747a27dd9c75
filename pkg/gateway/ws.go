package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/scrubgate/scrubgate/pkg/debug"
	"github.com/scrubgate/scrubgate/pkg/observability"
)

// handleObserverSocket returns a handler that upgrades the connection and
// pumps every payload published on the given bus channel to the socket as
// a text frame. The subscription is released when the observer disconnects.
func (a *Adapter) handleObserverSocket(channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := a.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			a.logger.Warn("websocket upgrade failed", "channel", channel, "error", err)
			return
		}
		defer conn.Close()

		sub, err := a.bus.Subscribe(r.Context(), channel)
		if err != nil {
			a.logger.Error("observer subscribe failed", "channel", channel, "error", err)
			return
		}
		defer sub.Close()

		observability.ObserverConnections.Inc()
		defer observability.ObserverConnections.Dec()
		debug.Log("gateway", "observer connected", "channel", channel, "remote", r.RemoteAddr)

		// Inbound frames are ignored; reading serves only to notice the
		// peer closing the socket.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case payload, ok := <-sub.C():
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					debug.Log("gateway", "observer write failed", "channel", channel, "error", err)
					return
				}
			case <-closed:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}
