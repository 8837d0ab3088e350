package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomSummary is the frozen outcome of a finished room.
type RoomSummary struct {
	SessionID         uuid.UUID  `json:"session_id"`
	RoomCode          string     `json:"room_code"`
	HostName          string     `json:"host_name"`
	Winner            *Standing  `json:"winner,omitempty"`
	SprintWinner      *Standing  `json:"sprint_winner,omitempty"`
	TotalParticipants int        `json:"total_participants"`
	TotalQuestions    int        `json:"total_questions"`
	AverageScore      float64    `json:"average_score"`
	Leaderboard       []Standing `json:"leaderboard"`
	DurationMinutes   int        `json:"game_duration"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        time.Time  `json:"finished_at"`
}
