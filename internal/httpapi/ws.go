package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stockpicks/internal/selection"
	"stockpicks/internal/snapshot"
	"stockpicks/internal/source"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// handleWS runs one selection session per connection. The client sends
// WSCommand messages; every state change is pushed as a WSMessage.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := s.log.With("session_id", sessionID)
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()
	log.Info("websocket session opened", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []selection.Option{selection.WithObserver(s.metrics), selection.WithFetchTimeout(s.fetchTimeout)}
	if n, ok := s.src.(source.RefreshNotifier); ok {
		refreshID, refreshed := n.SubscribeRefresh()
		defer n.UnsubscribeRefresh(refreshID)
		opts = append(opts, selection.WithCatalogUpdates(refreshed))
	}
	ctrl := selection.NewController(s.src, s.today, log, opts...)
	subID, states := ctrl.Subscribe(8)
	defer ctrl.Unsubscribe(subID)
	go ctrl.Run(ctx)

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	errs := make(chan string, 4)
	go s.readCommands(ctx, conn, ctrl, errs, cancel)
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(msg WSMessage) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}

	initial := ctrl.State().View()
	if err := write(WSMessage{Type: "state", State: &initial}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("websocket session closed")
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			v := st.View()
			if err := write(WSMessage{Type: "state", State: &v}); err != nil {
				log.Debug("websocket write failed", "error", err)
				return
			}
		case msg := <-errs:
			if err := write(WSMessage{Type: "error", Error: msg}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readCommands applies client commands until the connection closes.
func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, ctrl *selection.Controller, errs chan<- string, done func()) {
	defer done()
	for {
		var cmd WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read failed", "error", err)
			}
			return
		}

		var err error
		switch cmd.Type {
		case "date":
			if cmd.Value != "" && !snapshot.ValidDate(cmd.Value) {
				err = errors.New("date must be YYYY-MM-DD")
			} else {
				err = ctrl.SetDate(cmd.Value)
			}
		case "file":
			err = ctrl.SetFile(cmd.Value)
		case "reload":
			ctrl.Reload(ctx)
		default:
			err = errors.New("unknown command type " + cmd.Type)
		}
		if err != nil {
			select {
			case errs <- err.Error():
			default:
			}
		}
	}
}
