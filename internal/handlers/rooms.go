package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type CreateRoomRequest struct {
	HostName   string   `json:"host_name"`
	Categories []string `json:"categories,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

type CreateRoomResponse struct {
	RoomCode  string `json:"room_code"`
	HostToken string `json:"host_token"`
	JoinURL   string `json:"join_url"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type JoinResponse struct {
	RoomCode    string             `json:"room_code"`
	PlayerToken string             `json:"player_token"`
	Participant models.Participant `json:"participant"`
}

type TargetsRequest struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type AnswerRequest struct {
	QuestionID int    `json:"question_id"`
	Choice     string `json:"choice"`
}

func (s *Server) joinURL(code string) string {
	return fmt.Sprintf("%s/join/%s", strings.TrimRight(s.PublicURL, "/"), code)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "validation", "limit must not be negative")
		return
	}

	_, cred, err := s.Registry.Create(r.Context(), game.CreateOptions{
		HostName:   req.HostName,
		Categories: req.Categories,
		Limit:      req.Limit,
	})
	if err != nil {
		s.Logger.WithError(err).Warn("create room failed")
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateRoomResponse{
		RoomCode:  cred.RoomCode,
		HostToken: cred.Token,
		JoinURL:   s.joinURL(cred.RoomCode),
	})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	var req JoinRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	p, err := room.Join(req.Name)
	if err != nil {
		writeGameError(w, err)
		return
	}
	token, err := s.Tokens.IssuePlayer(room.Code(), p.ID)
	if err != nil {
		s.Logger.WithError(err).WithField("room", room.Code()).Error("issue player token")
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JoinResponse{RoomCode: room.Code(), PlayerToken: token, Participant: p})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	if err := room.Start(hostToken(r)); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room.Snapshot())
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	if err := room.Advance(hostToken(r)); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room.Snapshot())
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	var req TargetsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if err := room.SelectTargets(hostToken(r), req.ParticipantIDs); err != nil {
		writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHostQuestion(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	view, err := room.HostQuestion(hostToken(r))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// participant resolves the player token on r to a participant id.
func (s *Server) participant(room *game.Room, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, game.ErrMissingCredential
	}
	id, err := s.Tokens.VerifyPlayer(room.Code(), token)
	if err != nil {
		s.Logger.WithError(err).WithField("room", room.Code()).Debug("player token rejected")
		return uuid.Nil, game.ErrBadCredential
	}
	return id, nil
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	pid, err := s.participant(room, bearerToken(r))
	if err != nil {
		writeGameError(w, err)
		return
	}
	var req AnswerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	res, err := room.Submit(pid, req.QuestionID, req.Choice)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, room.Snapshot())
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, room.Leaderboard())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, room.Stats())
}

// handleQR renders the join link as a PNG for the spectator board.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	png, err := qrcode.Encode(s.joinURL(room.Code()), qrcode.Medium, qrSize)
	if err != nil {
		s.Logger.WithError(err).Error("qr generation failed")
		writeError(w, http.StatusInternalServerError, "internal", "qr generation failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (s *Server) handleTeardown(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	if err := room.Authorize(hostToken(r)); err != nil {
		writeGameError(w, err)
		return
	}
	if err := s.Registry.Teardown(room.Code()); err != nil {
		writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
