// internal/game/phase.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/sirupsen/logrus"
)

// phaseRound is the payload of an answerable phase. Each deck kind has its own
// eligibility and scoring rules.
type phaseRound interface {
	Kind() models.Phase
	Question() *models.Question
	Eligible(p *models.Participant) bool
	// Accept applies the immediate effects of an accepted submission.
	Accept(r *Room, p *models.Participant, sub *models.Submission) SubmitResult
	// Resolve applies the reveal-time effects and builds the reveal payload.
	Resolve(r *Room) *RevealData
}

// transitionLocked moves to the target phase, starting a new phase instance.
// All timers armed for the previous instance are stopped; any that already
// fired will see a different instance and do nothing.
func (r *Room) transitionLocked(to models.Phase) bool {
	if !r.phase.CanTransitionTo(to) {
		r.log.WithFields(logrus.Fields{"from": r.phase, "to": to}).Error("illegal phase transition")
		return false
	}
	r.stopTimersLocked()
	r.instance++
	r.phase = to
	r.deadline = time.Time{}
	r.allAnsweredAt = time.Time{}
	for _, p := range r.participants {
		p.AnsweredCurrent = false
	}
	return true
}

// enterEntryLocked opens the deck entry under the cursor.
func (r *Room) enterEntryLocked() {
	q := &r.deck[r.cursor]
	switch q.PhaseKind {
	case models.PhaseMinigame:
		r.openRoundLocked(r.newMinigameLocked(q))
	case models.PhaseFinalSprint:
		for _, p := range r.participants {
			p.Progress = 0
		}
		r.openRoundLocked(&sprintRound{entry: q, goal: r.settings.SprintGoal})
	default:
		r.openRoundLocked(&questionRound{q: q})
	}
}

func (r *Room) openRoundLocked(round phaseRound) {
	if !r.transitionLocked(round.Kind()) {
		return
	}
	r.round = round
	r.reveal = nil

	q := round.Question()
	limit := r.settings.timeLimit(q)
	r.deadline = r.now().Add(limit)

	payload := RoundStartedPayload{
		Question:       q.Public(),
		QuestionNumber: r.cursor + 1,
		TotalQuestions: len(r.deck),
		Deadline:       r.deadline,
		TimeLimitMs:    limit.Milliseconds(),
		Eligible:       r.eligibleIDsLocked(),
	}
	ev := EventQuestionStarted
	switch rd := round.(type) {
	case *minigameRound:
		ev = EventMinigameStarted
		payload.Targets = append([]uuid.UUID(nil), rd.targets...)
	case *sprintRound:
		ev = EventFinalSprintStarted
		payload.SprintIndex = rd.index
		payload.SprintGoal = rd.goal
	}
	r.log.WithFields(logrus.Fields{
		"phase":    r.phase,
		"question": q.ID,
		"instance": r.instance,
		"eligible": len(payload.Eligible),
	}).Info("round opened")
	r.emitLocked(ev, payload)

	r.armLocked(timerDeadline, limit, func() { r.revealLocked("deadline") })
	// A round nobody can answer is complete as soon as it opens.
	r.checkAllAnsweredLocked()
}

// revealLocked closes the open round. It is a no-op outside answerable phases,
// which makes racing deadline and auto-advance fires harmless.
func (r *Room) revealLocked(why string) {
	if !r.phase.Answerable() {
		return
	}
	data := r.round.Resolve(r)
	if !r.transitionLocked(models.PhaseReveal) {
		return
	}
	data.Reason = why
	data.Leaderboard = r.standingsLocked()
	r.reveal = data

	r.log.WithFields(logrus.Fields{"question": data.QuestionID, "reason": why}).Info("answer revealed")
	r.emitLocked(EventAnswerRevealed, data)
	if mg, ok := r.round.(*minigameRound); ok {
		r.emitLocked(EventMinigameResult, mg.result)
	}
	r.emitLocked(EventLeaderboardUpdated, LeaderboardPayload{Standings: data.Leaderboard})

	if r.settings.RevealDwell > 0 {
		r.armLocked(timerDwell, r.settings.RevealDwell, r.nextLocked)
	}
}

// nextLocked leaves reveal for the next sprint sub-question, the next deck
// entry, or finished. The cursor only moves forward.
func (r *Room) nextLocked() {
	if r.phase != models.PhaseReveal {
		return
	}
	if sr, ok := r.round.(*sprintRound); ok {
		if sr.index+1 < len(sr.entry.SprintDeck) {
			r.openRoundLocked(sr.next())
			return
		}
		r.sprintExhaustedLocked()
		return
	}
	if r.cursor+1 >= len(r.deck) {
		r.finishLocked("deck_exhausted")
		return
	}
	r.cursor++
	r.enterEntryLocked()
}

func (r *Room) finishLocked(why string) {
	if !r.transitionLocked(models.PhaseFinished) {
		return
	}
	r.finishedAt = r.now()
	summary := r.summaryLocked()
	r.summary = &summary
	stored := summary
	r.pendingSummary = &stored

	r.log.WithFields(logrus.Fields{"reason": why, "participants": summary.TotalParticipants}).Info("game finished")
	r.emitLocked(EventGameFinished, summary)
	r.emitLocked(EventLeaderboardUpdated, LeaderboardPayload{Standings: summary.Leaderboard})
}

// eligibleLocked applies the round's eligibility rule and the disconnect policy.
func (r *Room) eligibleLocked(p *models.Participant) bool {
	if r.round == nil || !r.round.Eligible(p) {
		return false
	}
	return !r.settings.ExcludeDisconnected || p.Connected
}

func (r *Room) eligibleIDsLocked() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.order))
	for _, id := range r.order {
		if r.eligibleLocked(r.participants[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Room) answerCountsLocked() (answered, eligible int) {
	for _, id := range r.order {
		p := r.participants[id]
		if !r.eligibleLocked(p) {
			continue
		}
		eligible++
		if p.AnsweredCurrent {
			answered++
		}
	}
	return answered, eligible
}

// checkAllAnsweredLocked arms the auto-advance timer the first time every
// eligible participant has answered in the current phase instance.
func (r *Room) checkAllAnsweredLocked() {
	if !r.phase.Answerable() || !r.allAnsweredAt.IsZero() {
		return
	}
	answered, eligible := r.answerCountsLocked()
	if answered < eligible {
		return
	}
	r.allAnsweredAt = r.now()
	delay := r.settings.AutoAdvanceDelay
	r.log.WithFields(logrus.Fields{"answered": answered, "instance": r.instance}).Info("all eligible participants answered")
	r.emitLocked(EventAllAnswered, AllAnsweredPayload{
		AdvanceAt: r.allAnsweredAt.Add(delay),
		DelayMs:   delay.Milliseconds(),
	})
	r.armLocked(timerAutoAdvance, delay, func() { r.revealLocked("all_answered") })
}
