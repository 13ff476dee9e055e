package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/curvesy/argus/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscribeFrame is the client-to-server control frame.
type subscribeFrame struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// handleWebsocket upgrades the connection, registers it with the
// distributor, and pumps events out until either side closes. Clients
// manage room membership with {action: subscribe|unsubscribe, room}.
func (s *Server) handleWebsocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	conn := s.dist.Connect()
	defer s.dist.Disconnect(conn)
	s.dist.Subscribe(conn, events.RoomSystem)

	slog.Info("Websocket client connected", "conn", conn.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range conn.Events() {
			if err := ws.WriteJSON(e); err != nil {
				slog.Debug("Websocket write failed", "conn", conn.ID, "error", err)
				return
			}
		}
	}()

	for {
		var frame subscribeFrame
		if err := ws.ReadJSON(&frame); err != nil {
			break
		}
		switch frame.Action {
		case "subscribe":
			s.dist.Subscribe(conn, events.Room(frame.Room))
		case "unsubscribe":
			s.dist.Unsubscribe(conn, events.Room(frame.Room))
		default:
			slog.Debug("Ignoring unknown websocket action", "action", frame.Action)
		}
	}

	s.dist.Disconnect(conn)
	<-done
	slog.Info("Websocket client disconnected", "conn", conn.ID)
}
