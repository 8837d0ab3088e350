package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/sirupsen/logrus"
)

// sprintRound is one sub-question of a final sprint entry. Everyone answers,
// ghosts included, and correct answers move progress toward the goal.
type sprintRound struct {
	entry *models.Question
	index int
	goal  int
}

func (s *sprintRound) Kind() models.Phase         { return models.PhaseFinalSprint }
func (s *sprintRound) Question() *models.Question { return &s.entry.SprintDeck[s.index] }

func (s *sprintRound) Eligible(*models.Participant) bool { return true }

func (s *sprintRound) next() *sprintRound {
	return &sprintRound{entry: s.entry, index: s.index + 1, goal: s.goal}
}

// Accept advances progress on a correct answer. Reaching the goal first is
// reported through SprintWinner so the caller can end the game at once.
func (s *sprintRound) Accept(r *Room, p *models.Participant, sub *models.Submission) SubmitResult {
	q := s.Question()
	if sub.Choice != q.CorrectAnswer {
		return SubmitResult{Progress: p.Progress}
	}
	sub.Correct = true
	p.Progress++
	r.emitLocked(EventFinalSprintUpdate, SprintUpdatePayload{
		ParticipantID: p.ID,
		Progress:      p.Progress,
		Goal:          s.goal,
		Race:          r.raceLocked(),
	})
	return SubmitResult{
		Correct:      true,
		Progress:     p.Progress,
		SprintWinner: p.Progress >= s.goal && r.sprintWinner == uuid.Nil,
	}
}

func (s *sprintRound) Resolve(r *Room) *RevealData {
	q := s.Question()
	return &RevealData{
		QuestionID:    q.ID,
		Kind:          models.PhaseFinalSprint,
		Question:      q.Clone(),
		CorrectAnswer: q.CorrectAnswer,
		Counts:        r.countsLocked(q),
		Results:       r.resultsLocked(q.ID, s.Eligible),
	}
}

func (r *Room) raceLocked() []SprintProgress {
	race := make([]SprintProgress, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		race = append(race, SprintProgress{ParticipantID: id, Name: p.Name, Progress: p.Progress})
	}
	return race
}

// declareSprintWinnerLocked ends the game without waiting for the rest of
// the sub-round.
func (r *Room) declareSprintWinnerLocked(p *models.Participant) {
	r.sprintWinner = p.ID
	r.log.WithFields(logrus.Fields{"participant": p.ID, "progress": p.Progress}).Info("final sprint winner")
	r.emitLocked(EventFinalSprintWinner, SprintWinnerPayload{
		Winner:   r.standingOfLocked(p.ID),
		Progress: p.Progress,
		Goal:     r.settings.SprintGoal,
	})
	r.finishLocked("sprint_winner")
}

// sprintExhaustedLocked ends a sprint whose mini-deck ran out. The leader
// wins if anyone made progress; ties go to join order.
func (r *Room) sprintExhaustedLocked() {
	var leader *models.Participant
	for _, id := range r.order {
		p := r.participants[id]
		if p.Progress > 0 && (leader == nil || p.Progress > leader.Progress) {
			leader = p
		}
	}
	if leader != nil {
		r.declareSprintWinnerLocked(leader)
		return
	}
	r.finishLocked("sprint_exhausted")
}
