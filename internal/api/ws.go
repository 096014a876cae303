package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"treasury-charts/internal/dashboard"
	"treasury-charts/internal/observability"
)

// handleWS streams the dashboard view of the requested theme: once on
// connect and again after every change.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	theme, ok := themeParam(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade error: %v", err)
		return
	}

	observability.SetWSClients(int(s.wsClients.Add(1)))
	defer func() {
		observability.SetWSClients(int(s.wsClients.Add(-1)))
		_ = conn.Close()
	}()

	views, unsubscribe := s.dash.Subscribe(theme)
	defer unsubscribe()

	if err := s.writeView(conn, s.dash.View(theme)); err != nil {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	// Client messages are ignored; the read loop only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pinger := time.NewTicker(s.pingInterval)
	defer pinger.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-pinger.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case v, ok := <-views:
			if !ok {
				return
			}
			if err := s.writeView(conn, v); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeView(conn *websocket.Conn, v dashboard.View) error {
	msg, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("failed to marshal view: %v", err)
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return err
	}
	observability.RecordWSMessage()
	return nil
}
