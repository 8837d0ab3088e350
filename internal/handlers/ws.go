package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/hub"
	"github.com/jason-s-yu/trivia/internal/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const wsSubprotocol = "trivia"

// ClientMessage is a frame sent by a websocket client.
//
//	{"type":"ping"}
//	{"type":"sync"}
//	{"type":"answer","question_id":3,"choice":"Paris"}   players only
//	{"type":"start"} / {"type":"advance"}                 moderators only
type ClientMessage struct {
	Type       string `json:"type"`
	QuestionID int    `json:"question_id,omitempty"`
	Choice     string `json:"choice,omitempty"`
}

// ServerMessage is a direct reply to one client. Room events are sent as
// game.Event frames instead.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// wsClient is one authenticated connection.
type wsClient struct {
	room  *game.Room
	sub   *hub.Subscriber
	role  hub.Role
	pid   uuid.UUID
	token string
	log   logrus.FieldLogger
}

// handleRoomWS upgrades to a websocket, authenticates the role, sends a
// state_sync snapshot and then streams room events.
func (s *Server) handleRoomWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Logger.WithError(err).Warn("websocket accept failed")
		return
	}
	defer c.CloseNow()

	if c.Subprotocol() != wsSubprotocol {
		c.Close(BadSubprotocolError, "client must use the 'trivia' subprotocol")
		return
	}

	room, err := s.Registry.Get(chi.URLParam(r, "code"))
	if err != nil {
		c.Close(InvalidRoomCodeError, err.Error())
		return
	}
	role, err := hub.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		c.Close(InvalidRoleError, err.Error())
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}

	client := &wsClient{room: room, role: role, token: token}
	switch role {
	case hub.RoleModerator:
		if err := room.Authorize(token); err != nil {
			c.Close(InvalidTokenError, err.Error())
			return
		}
	case hub.RolePlayer:
		pid, err := s.participant(room, token)
		if err == nil {
			_, err = room.Participant(pid)
		}
		if err != nil {
			c.Close(InvalidTokenError, err.Error())
			return
		}
		client.pid = pid
	}
	client.log = s.Logger.WithFields(logrus.Fields{"room": room.Code(), "role": role, "participant": client.pid})

	// Subscribe before snapshotting so no event falls between the two.
	client.sub = s.Hub.Subscribe(room.Code(), role, client.pid)
	defer s.disconnect(client)
	if role == hub.RolePlayer {
		if err := room.SetConnected(client.pid, true); err != nil {
			client.log.WithError(err).Debug("mark connected")
		}
	}
	client.send(ServerMessage{Type: "state_sync", Payload: room.Snapshot()})

	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path, string(role))

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return client.sub.Pump(ctx, c, s.writeTimeout())
	})
	g.Go(func() error {
		return client.readLoop(ctx, c)
	})
	err = g.Wait()
	if errors.Is(err, hub.ErrClosed) || errors.Is(err, context.Canceled) {
		err = nil
	}
	if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		err = nil
	}
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, string(role), err)
}

// disconnect unsubscribes and marks a player disconnected once their last
// connection is gone.
func (s *Server) disconnect(client *wsClient) {
	s.Hub.Unsubscribe(client.sub)
	if client.role != hub.RolePlayer {
		return
	}
	if s.Hub.PlayerConnections(client.room.Code(), client.pid) > 0 {
		return
	}
	if err := client.room.SetConnected(client.pid, false); err != nil {
		client.log.WithError(err).Debug("mark disconnected")
	}
}

func (cl *wsClient) send(msg ServerMessage) {
	if err := cl.sub.SendJSON(msg); err != nil {
		cl.log.WithError(err).WithField("type", msg.Type).Debug("direct message not queued")
	}
}

func (cl *wsClient) sendError(err error) {
	cl.send(ServerMessage{Type: "error", Error: err.Error(), Kind: game.Kind(err)})
}

func (cl *wsClient) readLoop(ctx context.Context, c *websocket.Conn) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if msgType != websocket.MessageText {
			cl.log.Debug("ignoring binary frame")
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			cl.send(ServerMessage{Type: "error", Error: "malformed message", Kind: "validation"})
			continue
		}
		cl.handle(msg)
	}
}

func (cl *wsClient) handle(msg ClientMessage) {
	switch msg.Type {
	case "ping":
		cl.send(ServerMessage{Type: "pong"})
	case "sync":
		cl.send(ServerMessage{Type: "state_sync", Payload: cl.room.Snapshot()})
	case "answer":
		if cl.role != hub.RolePlayer {
			cl.sendError(game.ErrIneligible)
			return
		}
		res, err := cl.room.Submit(cl.pid, msg.QuestionID, msg.Choice)
		if err != nil {
			cl.sendError(err)
			return
		}
		cl.send(ServerMessage{Type: "answer_result", Payload: res})
	case "start", "advance":
		if cl.role != hub.RoleModerator {
			cl.sendError(game.ErrBadCredential)
			return
		}
		var err error
		if msg.Type == "start" {
			err = cl.room.Start(cl.token)
		} else {
			err = cl.room.Advance(cl.token)
		}
		if err != nil {
			cl.sendError(err)
		}
	default:
		cl.send(ServerMessage{Type: "error", Error: "unknown message type " + msg.Type, Kind: "validation"})
	}
}
