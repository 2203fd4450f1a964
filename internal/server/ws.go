package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wearlab/motion-relay-service/internal/packet"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Observers are dashboards served from anywhere; access control is
	// the deployment proxy's job.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSubscriber adapts one WebSocket connection to the hub's Subscriber
// interface. Writes are serialized because broadcast sends and keep-alive
// pings come from different goroutines.
type wsSubscriber struct {
	conn        *websocket.Conn
	sendTimeout time.Duration

	mu sync.Mutex
}

// Send delivers one packet as a JSON text frame. The write deadline bounds
// the send so a stalled observer fails fast instead of blocking the
// broadcast loop.
func (ws *wsSubscriber) Send(p packet.Packet) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.conn.SetWriteDeadline(time.Now().Add(ws.sendTimeout))
	return ws.conn.WriteJSON(p)
}

// ping sends a control frame under the same write lock as Send.
func (ws *wsSubscriber) ping() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	return ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ws.sendTimeout))
}

// handleWS implements the /ws endpoint: upgrade, register with the hub,
// one-shot catch-up from the latest-packet cache, then idle until the
// connection dies. Inbound frames are read and discarded; the protocol is
// server-to-client only.
func (s *HTTPServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		s.metrics.RecordHTTPError(r.Method, "/ws", "client_error")
		return
	}
	s.metrics.RecordHTTPRequest(r.Method, "/ws", "101", 0)

	sub := &wsSubscriber{
		conn:        conn,
		sendTimeout: s.config.WebSocket.GetSendTimeout(),
	}

	s.hub.Add(sub)
	s.logger.Info("observer connected",
		slog.String("remote_addr", conn.RemoteAddr().String()),
		slog.Int("subscribers", s.hub.Count()),
	)

	// Catch-up: a new observer immediately sees the packet that arrived
	// before it connected, if any.
	if latest, ok := s.hub.Latest(); ok {
		if err := sub.Send(latest); err != nil {
			s.logger.Debug("catch-up send failed", slog.String("error", err.Error()))
			s.hub.Remove(sub)
			conn.Close()
			return
		}
		s.metrics.CatchupDeliveries.Inc()
	}

	done := make(chan struct{})
	go s.pingLoop(sub, done)

	// The read loop blocks for the lifetime of the connection. Returning
	// from it, for whatever reason, is the single teardown path: the
	// subscriber is always removed before the connection closes.
	s.readLoop(conn)

	close(done)
	s.hub.Remove(sub)
	conn.Close()

	s.logger.Info("observer disconnected",
		slog.String("remote_addr", conn.RemoteAddr().String()),
		slog.Int("subscribers", s.hub.Count()),
	)
}

// readLoop consumes and discards inbound frames until the connection
// fails or the idle deadline expires. Pongs extend the deadline.
func (s *HTTPServer) readLoop(conn *websocket.Conn) {
	idleTimeout := s.config.WebSocket.GetIdleTimeout()

	conn.SetReadLimit(s.config.WebSocket.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(idleTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("observer read error", slog.String("error", err.Error()))
			}
			return
		}
		// Any inbound traffic proves liveness.
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
	}
}

// pingLoop sends periodic keep-alive pings until done is closed. A failed
// ping is left for the read loop to notice via the expiring deadline.
func (s *HTTPServer) pingLoop(sub *wsSubscriber, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.WebSocket.GetPingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sub.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
