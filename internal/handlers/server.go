// Package handlers exposes rooms over HTTP and websockets.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/hub"
	"github.com/jason-s-yu/trivia/internal/middleware"
	"github.com/sirupsen/logrus"
)

// PlayerTokens issues and verifies participant session tokens.
type PlayerTokens interface {
	IssuePlayer(room string, participantID uuid.UUID) (string, error)
	VerifyPlayer(room, token string) (uuid.UUID, error)
}

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// Server wires the room registry and the broadcast hub to HTTP.
type Server struct {
	Registry  *game.Registry
	Hub       *hub.Hub
	Tokens    PlayerTokens
	Logger    logrus.FieldLogger
	PublicURL string
	// WriteTimeout bounds each websocket frame write.
	WriteTimeout time.Duration
	Checks       map[string]Checker
}

func (s *Server) writeTimeout() time.Duration {
	if s.WriteTimeout <= 0 {
		return 3 * time.Second
	}
	return s.WriteTimeout
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(s.Logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", s.handleCreateRoom)
		r.Route("/{code}", func(r chi.Router) {
			r.Post("/join", s.handleJoin)
			r.Post("/start", s.handleStart)
			r.Post("/advance", s.handleAdvance)
			r.Post("/targets", s.handleTargets)
			r.Get("/question", s.handleHostQuestion)
			r.Post("/answer", s.handleAnswer)
			r.Get("/state", s.handleState)
			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/stats", s.handleStats)
			r.Get("/qr.png", s.handleQR)
			r.Delete("/", s.handleTeardown)
		})
	})

	r.Get("/ws/rooms/{code}", s.handleRoomWS)
	return r
}

type checkResult struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]checkResult, len(s.Checks)+1)
	results["rooms"] = checkResult{Status: "ok"}
	status := http.StatusOK
	for name, c := range s.Checks {
		if err := c.Check(ctx); err != nil {
			s.Logger.WithError(err).WithField("name", name).Error("health check failed")
			results[name] = checkResult{Status: "error"}
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = checkResult{Status: "ok"}
	}
	writeJSON(w, status, results)
}

// room resolves {code}, writing the error response when it fails.
func (s *Server) room(w http.ResponseWriter, r *http.Request) (*game.Room, bool) {
	room, err := s.Registry.Get(chi.URLParam(r, "code"))
	if err != nil {
		writeGameError(w, err)
		return nil, false
	}
	return room, true
}
