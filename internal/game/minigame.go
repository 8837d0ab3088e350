package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/sirupsen/logrus"
)

// minigameRound is a targeted elimination round. The safe option is fixed
// when the round opens; targets who miss it become ghosts at reveal.
type minigameRound struct {
	q       *models.Question
	safe    string
	targets []uuid.UUID
	isTgt   map[uuid.UUID]bool
	result  MinigameResultPayload
}

func (m *minigameRound) Kind() models.Phase         { return models.PhaseMinigame }
func (m *minigameRound) Question() *models.Question { return m.q }

// Eligible is true for alive targets only. Non-targets count as done.
func (m *minigameRound) Eligible(p *models.Participant) bool {
	return m.isTgt[p.ID] && !p.IsGhost()
}

func (m *minigameRound) Accept(*Room, *models.Participant, *models.Submission) SubmitResult {
	return SubmitResult{Pending: true}
}

func (m *minigameRound) Resolve(r *Room) *RevealData {
	res := MinigameResultPayload{
		SafeAnswer: m.safe,
		Targets:    append([]uuid.UUID(nil), m.targets...),
		Survivors:  []uuid.UUID{},
		Ghosted:    []uuid.UUID{},
	}
	for _, id := range m.targets {
		p := r.participants[id]
		sub, ok := r.submissions[models.SubmissionKey{ParticipantID: id, QuestionID: m.q.ID}]
		if ok && sub.Choice == m.safe {
			sub.Correct = true
			res.Survivors = append(res.Survivors, id)
			continue
		}
		p.Status = models.StatusGhost
		res.Ghosted = append(res.Ghosted, id)
		r.log.WithField("participant", id).Info("participant ghosted")
	}
	m.result = res

	return &RevealData{
		QuestionID: m.q.ID,
		Kind:       models.PhaseMinigame,
		Question:   m.q.Clone(),
		SafeAnswer: m.safe,
		Counts:     r.countsLocked(m.q),
		Results:    r.resultsLocked(m.q.ID, func(p *models.Participant) bool { return m.isTgt[p.ID] }),
		Ghosted:    res.Ghosted,
	}
}

// newMinigameLocked fixes the safe option and the targets. Host-selected
// targets take precedence and are consumed.
func (r *Room) newMinigameLocked(q *models.Question) *minigameRound {
	safe := r.settings.SafeAnswer(*q)
	if !q.HasAnswer(safe) {
		r.log.WithField("safe", safe).Warn("safe answer strategy picked a missing option, using the authored answer")
		safe = q.CorrectAnswer
	}

	var alive []models.Participant
	for _, id := range r.order {
		if p := r.participants[id]; !p.IsGhost() {
			alive = append(alive, *p)
		}
	}
	var picked []uuid.UUID
	if r.pendingTargets != nil {
		picked = r.pendingTargets
		r.pendingTargets = nil
	} else {
		picked = r.settings.Targets(alive)
	}

	m := &minigameRound{q: q, safe: safe, isTgt: make(map[uuid.UUID]bool, len(picked))}
	for _, id := range picked {
		p, ok := r.participants[id]
		if !ok || p.IsGhost() || m.isTgt[id] {
			continue
		}
		m.isTgt[id] = true
		m.targets = append(m.targets, id)
	}
	r.log.WithFields(logrus.Fields{"question": q.ID, "targets": len(m.targets)}).Debug("minigame prepared")
	return m
}
