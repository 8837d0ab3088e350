package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/models"
)

// EventType names a broadcast event.
type EventType string

const (
	EventPlayerListUpdated  EventType = "player_list_updated"
	EventGameStarted        EventType = "game_started"
	EventQuestionStarted    EventType = "question_started"
	EventMinigameStarted    EventType = "minigame_started"
	EventFinalSprintStarted EventType = "final_sprint_started"
	EventPlayerAnswered     EventType = "player_answered"
	EventAllAnswered        EventType = "all_players_answered"
	EventAnswerRevealed     EventType = "answer_revealed"
	EventMinigameResult     EventType = "minigame_result"
	EventFinalSprintUpdate  EventType = "final_sprint_update"
	EventFinalSprintWinner  EventType = "final_sprint_winner"
	EventGameFinished       EventType = "game_finished"
	EventLeaderboardUpdated EventType = "leaderboard_updated"
	EventRoomClosed         EventType = "room_closed"
)

// Event is one state change of a room. The same value goes to every role;
// renderers pick the fields they need.
type Event struct {
	Type     EventType    `json:"type"`
	Room     string       `json:"room"`
	Seq      uint64       `json:"seq"`
	Phase    models.Phase `json:"phase"`
	Instance uint64       `json:"instance"`
	At       time.Time    `json:"at"`
	Payload  any          `json:"payload,omitempty"`
}

// Broadcaster fans events out to connected clients. Broadcast is called
// outside the room lock, in sequence order per room.
type Broadcaster interface {
	Broadcast(ev Event)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(ev Event)

func (f BroadcasterFunc) Broadcast(ev Event) { f(ev) }

// ActionLog receives every event for the historian.
type ActionLog interface {
	Append(ctx context.Context, record cache.RoomActionRecord) error
}

// ResultSink stores the summary of a finished room.
type ResultSink interface {
	StoreResults(ctx context.Context, summary models.RoomSummary) error
}

// Credentials issues and checks host credentials. The room keeps only the digest.
type Credentials interface {
	IssueHost(room string) (token, digest string, err error)
	VerifyHost(room, token, digest string) error
}

// --- payloads ---

type PlayerListPayload struct {
	Participants []models.Participant `json:"participants"`
}

type GameStartedPayload struct {
	TotalQuestions int       `json:"total_questions"`
	StartedAt      time.Time `json:"started_at"`
}

// RoundStartedPayload opens a question, minigame or sprint sub-question.
type RoundStartedPayload struct {
	Question       models.PublicQuestion `json:"question"`
	QuestionNumber int                   `json:"question_number"`
	TotalQuestions int                   `json:"total_questions"`
	Deadline       time.Time             `json:"deadline"`
	TimeLimitMs    int64                 `json:"time_limit_ms"`
	Eligible       []uuid.UUID           `json:"eligible"`
	Targets        []uuid.UUID           `json:"targets,omitempty"`
	SprintIndex    int                   `json:"sprint_index,omitempty"`
	SprintGoal     int                   `json:"sprint_goal,omitempty"`
}

type PlayerAnsweredPayload struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Answered      int       `json:"answered"`
	Eligible      int       `json:"eligible"`
}

type AllAnsweredPayload struct {
	AdvanceAt time.Time `json:"advance_at"`
	DelayMs   int64     `json:"delay_ms"`
}

// AnswerResult is one participant's outcome in a reveal.
type AnswerResult struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Choice        string    `json:"choice,omitempty"`
	Answered      bool      `json:"answered"`
	Correct       bool      `json:"correct"`
	Points        int       `json:"points"`
}

// RevealData is the reveal payload. It is cached on the room for reconnects.
type RevealData struct {
	QuestionID     int               `json:"question_id"`
	Kind           models.Phase      `json:"kind"`
	Question       models.Question   `json:"question"`
	CorrectAnswer  string            `json:"correct_answer,omitempty"`
	WinningAnswers []string          `json:"winning_answers,omitempty"`
	SafeAnswer     string            `json:"safe_answer,omitempty"`
	Counts         map[string]int    `json:"counts"`
	Results        []AnswerResult    `json:"results"`
	Ghosted        []uuid.UUID       `json:"ghosted,omitempty"`
	Reason         string            `json:"reason"`
	Leaderboard    []models.Standing `json:"leaderboard"`
}

type MinigameResultPayload struct {
	SafeAnswer string      `json:"safe_answer"`
	Targets    []uuid.UUID `json:"targets"`
	Survivors  []uuid.UUID `json:"survivors"`
	Ghosted    []uuid.UUID `json:"ghosted"`
}

// SprintProgress is one row of the sprint race.
type SprintProgress struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Name          string    `json:"name"`
	Progress      int       `json:"progress"`
}

type SprintUpdatePayload struct {
	ParticipantID uuid.UUID        `json:"participant_id"`
	Progress      int              `json:"progress"`
	Goal          int              `json:"goal"`
	Race          []SprintProgress `json:"race"`
}

type SprintWinnerPayload struct {
	Winner   models.Standing `json:"winner"`
	Progress int             `json:"progress"`
	Goal     int             `json:"goal"`
}

type LeaderboardPayload struct {
	Standings []models.Standing `json:"standings"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}
