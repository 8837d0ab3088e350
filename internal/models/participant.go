package models

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantStatus string

const (
	StatusAlive ParticipantStatus = "alive"
	StatusGhost ParticipantStatus = "ghost"
)

// Participant is a roster entry. It survives disconnects so a reconnecting
// device gets its identity and score back.
type Participant struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Status          ParticipantStatus `json:"status"`
	Score           int               `json:"score"`
	AnsweredCurrent bool              `json:"answered_current"`
	Progress        int               `json:"progress"`
	Connected       bool              `json:"connected"`
	JoinOrder       int               `json:"join_order"`
	JoinedAt        time.Time         `json:"joined_at"`
}

// IsGhost reports whether the participant has been eliminated by a minigame.
func (p *Participant) IsGhost() bool {
	return p.Status == StatusGhost
}

// Standing is one leaderboard row.
type Standing struct {
	Rank            int               `json:"rank"`
	ParticipantID   uuid.UUID         `json:"participant_id"`
	Name            string            `json:"name"`
	Score           int               `json:"score"`
	Status          ParticipantStatus `json:"status"`
	Progress        int               `json:"progress"`
	AnsweredCurrent bool              `json:"answered_current"`
}
