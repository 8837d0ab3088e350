// internal/game/snapshot.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
)

// SprintState is the final sprint part of a snapshot.
type SprintState struct {
	Index  int              `json:"index"`
	Total  int              `json:"total"`
	Goal   int              `json:"goal"`
	Race   []SprintProgress `json:"race"`
	Winner *uuid.UUID       `json:"winner,omitempty"`
}

// Snapshot is everything a reconnecting client needs to render the current
// screen. Seq is the last event folded into it; clients drop events with a
// lower or equal Seq.
type Snapshot struct {
	Room           string                 `json:"room"`
	HostName       string                 `json:"host_name,omitempty"`
	Phase          models.Phase           `json:"phase"`
	Instance       uint64                 `json:"instance"`
	Seq            uint64                 `json:"seq"`
	Question       *models.PublicQuestion `json:"question,omitempty"`
	QuestionNumber int                    `json:"question_number"`
	TotalQuestions int                    `json:"total_questions"`
	Deadline       time.Time              `json:"deadline,omitzero"`
	RemainingMs    int64                  `json:"remaining_ms"`
	Eligible       []uuid.UUID            `json:"eligible,omitempty"`
	Targets        []uuid.UUID            `json:"targets,omitempty"`
	AllAnswered    bool                   `json:"all_answered"`
	AdvanceAt      time.Time              `json:"advance_at,omitzero"`
	Reveal         *RevealData            `json:"reveal,omitempty"`
	Sprint         *SprintState           `json:"sprint,omitempty"`
	Participants   []models.Participant   `json:"participants"`
	Leaderboard    []models.Standing      `json:"leaderboard"`
	Summary        *models.RoomSummary    `json:"summary,omitempty"`
}

// Snapshot reads a consistent view under the shared lock.
func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Room:           r.code,
		HostName:       r.hostName,
		Phase:          r.phase,
		Instance:       r.instance,
		Seq:            r.seq,
		QuestionNumber: r.cursor + 1,
		TotalQuestions: len(r.deck),
		Participants:   r.rosterLocked(),
		Leaderboard:    r.standingsLocked(),
		Reveal:         r.reveal,
		Summary:        r.summary,
	}
	if r.phase.Answerable() {
		pub := r.round.Question().Public()
		s.Question = &pub
		s.Deadline = r.deadline
		s.RemainingMs = max(0, r.deadline.Sub(r.now()).Milliseconds())
		s.Eligible = r.eligibleIDsLocked()
		if mg, ok := r.round.(*minigameRound); ok {
			s.Targets = append([]uuid.UUID(nil), mg.targets...)
		}
		if !r.allAnsweredAt.IsZero() {
			s.AllAnswered = true
			s.AdvanceAt = r.allAnsweredAt.Add(r.settings.AutoAdvanceDelay)
		}
	}
	if sr, ok := r.round.(*sprintRound); ok {
		st := &SprintState{
			Index: sr.index,
			Total: len(sr.entry.SprintDeck),
			Goal:  sr.goal,
			Race:  r.raceLocked(),
		}
		if r.sprintWinner != uuid.Nil {
			w := r.sprintWinner
			st.Winner = &w
		}
		s.Sprint = st
	}
	return s
}

// Leaderboard returns the current ranked standings.
func (r *Room) Leaderboard() []models.Standing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.standingsLocked()
}

// Stats is a compact progress summary for dashboards.
type Stats struct {
	RoomCode             string       `json:"room_code"`
	Phase                models.Phase `json:"phase"`
	TotalParticipants    int          `json:"total_participants"`
	ConnectedCount       int          `json:"connected"`
	GhostCount           int          `json:"ghosts"`
	CurrentQuestion      int          `json:"current_question"`
	TotalQuestions       int          `json:"total_questions"`
	TimeRemainingSec     int          `json:"time_remaining"`
	ParticipantsAnswered int          `json:"participants_answered"`
	EligibleCount        int          `json:"eligible"`
}

// Stats reads the room's progress under the shared lock.
func (r *Room) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{
		RoomCode:          r.code,
		Phase:             r.phase,
		TotalParticipants: len(r.order),
		CurrentQuestion:   r.cursor + 1,
		TotalQuestions:    len(r.deck),
	}
	for _, p := range r.participants {
		if p.Connected {
			st.ConnectedCount++
		}
		if p.IsGhost() {
			st.GhostCount++
		}
	}
	if r.phase.Answerable() {
		st.TimeRemainingSec = int(max(0, r.deadline.Sub(r.now())) / time.Second)
		st.ParticipantsAnswered, st.EligibleCount = r.answerCountsLocked()
	}
	return st
}
