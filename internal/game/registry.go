// internal/game/registry.go
package game

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jason-s-yu/trivia/internal/questions"
	"github.com/sirupsen/logrus"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 100
)

// RegistryConfig wires a Registry to its collaborators. Only Source and
// Credentials are required.
type RegistryConfig struct {
	Source      questions.Source
	Credentials Credentials
	Broadcaster Broadcaster
	Actions     ActionLog
	Results     ResultSink
	Settings    Settings
	Logger      logrus.FieldLogger

	// Now and NewCode replace the clock and the code generator in tests.
	Now     func() time.Time
	NewCode func() (string, error)
}

// Registry owns every live room in the process. Codes are never reused for
// the registry's lifetime.
type Registry struct {
	cfg RegistryConfig
	log logrus.FieldLogger

	mu     sync.RWMutex
	rooms  map[string]*Room
	issued map[string]struct{}
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewCode == nil {
		cfg.NewCode = GenerateRoomCode
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Registry{
		cfg:    cfg,
		log:    cfg.Logger,
		rooms:  make(map[string]*Room),
		issued: make(map[string]struct{}),
	}
}

// CreateOptions selects the deck and host details of a new room.
type CreateOptions struct {
	HostName   string
	Categories []string
	Limit      int
	// Settings overrides the registry defaults when non-nil.
	Settings *Settings
}

// HostCredential is handed to the room creator once. The room keeps only a digest.
type HostCredential struct {
	RoomCode string `json:"room_code"`
	Token    string `json:"host_token"`
}

// Create pulls a deck, reserves a fresh code, and registers a new room.
func (g *Registry) Create(ctx context.Context, opts CreateOptions) (*Room, HostCredential, error) {
	settings := g.cfg.Settings
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	settings = settings.withDefaults()

	src, err := g.cfg.Source.Deck(ctx, questions.Request{Categories: opts.Categories, Limit: opts.Limit})
	if err != nil {
		return nil, HostCredential{}, fmt.Errorf("load question deck: %w", err)
	}
	deck, err := prepareDeck(src, settings.ShuffleAnswers)
	if err != nil {
		return nil, HostCredential{}, err
	}

	code, err := g.reserveCode()
	if err != nil {
		return nil, HostCredential{}, err
	}
	token, digest, err := g.cfg.Credentials.IssueHost(code)
	if err != nil {
		return nil, HostCredential{}, fmt.Errorf("issue host credential: %w", err)
	}

	room := newRoom(roomDeps{
		code:        code,
		hostName:    strings.TrimSpace(opts.HostName),
		hostDigest:  digest,
		deck:        deck,
		settings:    settings,
		creds:       g.cfg.Credentials,
		broadcaster: g.cfg.Broadcaster,
		actions:     g.cfg.Actions,
		results:     g.cfg.Results,
		log:         g.log,
		now:         g.cfg.Now,
	})

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, HostCredential{}, ErrRoomClosed
	}
	g.rooms[code] = room
	g.mu.Unlock()

	g.log.WithFields(logrus.Fields{"room": code, "questions": len(deck)}).Info("room created")
	return room, HostCredential{RoomCode: code, Token: token}, nil
}

func (g *Registry) reserveCode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for range maxCodeAttempts {
		code, err := g.cfg.NewCode()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, used := g.issued[code]; used {
			continue
		}
		g.issued[code] = struct{}{}
		return code, nil
	}
	return "", fmt.Errorf("%w: %d attempts collided", ErrCodesExhausted, maxCodeAttempts)
}

// Get looks a room up by code, case-insensitively.
func (g *Registry) Get(code string) (*Room, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	room, ok := g.rooms[code]
	g.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Len reports the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Teardown removes a room and closes it. Its code stays reserved.
func (g *Registry) Teardown(code string) error {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return err
	}
	g.mu.Lock()
	room, ok := g.rooms[code]
	delete(g.rooms, code)
	g.mu.Unlock()
	if !ok {
		return ErrRoomNotFound
	}
	room.close("teardown")
	return nil
}

// ReapIdle tears down rooms with no accepted mutation for maxIdle and returns
// their codes.
func (g *Registry) ReapIdle(now time.Time, maxIdle time.Duration) []string {
	g.mu.RLock()
	var stale []string
	for code, room := range g.rooms {
		if now.Sub(room.idleSince()) >= maxIdle {
			stale = append(stale, code)
		}
	}
	g.mu.RUnlock()

	var reaped []string
	for _, code := range stale {
		g.mu.Lock()
		room, ok := g.rooms[code]
		if ok && now.Sub(room.idleSince()) < maxIdle {
			ok = false
		}
		if ok {
			delete(g.rooms, code)
		}
		g.mu.Unlock()
		if ok {
			room.close("idle")
			reaped = append(reaped, code)
		}
	}
	if len(reaped) > 0 {
		g.log.WithField("rooms", reaped).Info("reaped idle rooms")
	}
	return reaped
}

// Shutdown closes every room and refuses further creates.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	rooms := g.rooms
	g.rooms = make(map[string]*Room)
	g.closed = true
	g.mu.Unlock()
	for _, room := range rooms {
		room.close("shutdown")
	}
	g.log.WithField("rooms", len(rooms)).Info("registry shut down")
}

// GenerateRoomCode draws a 6 character code from A-Z0-9.
func GenerateRoomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeRoomCode uppercases a code and checks its format.
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return "", ErrBadRoomCode
	}
	for _, c := range code {
		if !strings.ContainsRune(codeAlphabet, c) {
			return "", ErrBadRoomCode
		}
	}
	return code, nil
}
