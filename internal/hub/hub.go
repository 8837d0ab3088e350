// Package hub fans room events out to websocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/sirupsen/logrus"
)

// Role is the kind of client on the other end of a subscription. Every role
// receives the same bytes for an event.
type Role string

const (
	RoleModerator Role = "moderator"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// ErrBadRole is returned by ParseRole for unknown roles.
var ErrBadRole = errors.New("unknown role")

// ParseRole accepts moderator, player or spectator. Empty means spectator.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleModerator, RolePlayer, RoleSpectator:
		return Role(s), nil
	case "":
		return RoleSpectator, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadRole, s)
}

// Close reasons reported to the client.
const (
	ReasonRoomClosed = "room closed"
	ReasonTooSlow    = "subscriber too slow"
	ReasonShutdown   = "server shutting down"
)

// ErrClosed is returned by Pump when the hub ended the subscription.
var ErrClosed = errors.New("subscription closed by hub")

const defaultBuffer = 64

// Hub is an in-process pub/sub keyed by room code. It implements game.Broadcaster.
type Hub struct {
	log    logrus.FieldLogger
	buffer int

	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
}

// New creates a Hub. buffer is the per-subscriber queue length; a subscriber
// that falls that far behind is dropped and must resync.
func New(logger logrus.FieldLogger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		log:    logger,
		buffer: buffer,
		rooms:  make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscriber is one connected client.
type Subscriber struct {
	ID            uuid.UUID
	Room          string
	Role          Role
	ParticipantID uuid.UUID // players only

	mu     sync.Mutex
	send   chan []byte
	closed bool
	reason string
}

// offer queues data without blocking. It returns false when the queue is full
// or the subscriber is already closed.
func (s *Subscriber) offer(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// finish closes the queue once; buffered messages are still delivered.
func (s *Subscriber) finish(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.reason = reason
	close(s.send)
}

// Reason returns why the hub closed the subscription.
func (s *Subscriber) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Messages returns the outgoing queue. It is closed when the hub drops the subscriber.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// SendJSON queues a direct message to this subscriber only.
func (s *Subscriber) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !s.offer(data) {
		return ErrClosed
	}
	return nil
}

// Subscribe registers a client for a room's events.
func (h *Hub) Subscribe(room string, role Role, participantID uuid.UUID) *Subscriber {
	sub := &Subscriber{
		ID:            uuid.New(),
		Room:          room,
		Role:          role,
		ParticipantID: participantID,
		send:          make(chan []byte, h.buffer),
	}
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Subscriber]struct{})
	}
	h.rooms[room][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.remove(sub, "")
}

func (h *Hub) remove(sub *Subscriber, reason string) {
	h.mu.Lock()
	if subs, ok := h.rooms[sub.Room]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.rooms, sub.Room)
		}
	}
	h.mu.Unlock()
	sub.finish(reason)
}

func (h *Hub) subscribers(room string) []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Subscriber, 0, len(h.rooms[room]))
	for sub := range h.rooms[room] {
		out = append(out, sub)
	}
	return out
}

// Broadcast marshals the event once and queues it for every subscriber of
// the room. Slow subscribers are dropped rather than skipping events.
func (h *Hub) Broadcast(ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"room": ev.Room, "event": ev.Type}).Error("failed to marshal event")
		return
	}
	subs := h.subscribers(ev.Room)
	for _, sub := range subs {
		if !sub.offer(data) {
			h.log.WithFields(logrus.Fields{"room": ev.Room, "subscriber": sub.ID, "role": sub.Role}).Warn("dropping slow subscriber")
			h.remove(sub, ReasonTooSlow)
		}
	}
	if ev.Type == game.EventRoomClosed {
		for _, sub := range subs {
			h.remove(sub, ReasonRoomClosed)
		}
	}
}

// Count returns the number of subscribers per role in a room.
func (h *Hub) Count(room string) map[Role]int {
	counts := make(map[Role]int)
	for _, sub := range h.subscribers(room) {
		counts[sub.Role]++
	}
	return counts
}

// PlayerConnections counts the live connections of one participant.
func (h *Hub) PlayerConnections(room string, participantID uuid.UUID) int {
	n := 0
	for _, sub := range h.subscribers(room) {
		if sub.Role == RolePlayer && sub.ParticipantID == participantID {
			n++
		}
	}
	return n
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]map[*Subscriber]struct{})
	h.mu.Unlock()
	for _, subs := range rooms {
		for sub := range subs {
			sub.finish(ReasonShutdown)
		}
	}
}

// Pump writes queued messages to conn until ctx ends or the hub closes the
// subscription, in which case the connection is closed with the reason.
func (s *Subscriber) Pump(ctx context.Context, conn *websocket.Conn, writeTimeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.send:
			if !ok {
				status := websocket.StatusNormalClosure
				reason := s.Reason()
				if reason == ReasonTooSlow {
					status = websocket.StatusPolicyViolation
				} else if reason == ReasonShutdown {
					status = websocket.StatusGoingAway
				}
				conn.Close(status, reason)
				return ErrClosed
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
