// internal/game/scoring.go
package game

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
)

// questionRound is a standard or poll question. Only alive participants answer.
type questionRound struct {
	q *models.Question
}

func (qr *questionRound) Kind() models.Phase         { return models.PhaseQuestion }
func (qr *questionRound) Question() *models.Question { return qr.q }

func (qr *questionRound) Eligible(p *models.Participant) bool {
	return !p.IsGhost()
}

// Accept scores a standard question right away. Poll points wait for reveal.
func (qr *questionRound) Accept(r *Room, p *models.Participant, sub *models.Submission) SubmitResult {
	if qr.q.IsPoll() {
		return SubmitResult{Pending: true}
	}
	if sub.Choice != qr.q.CorrectAnswer {
		return SubmitResult{}
	}
	sub.Correct = true
	sub.Points = r.settings.speedPoints(r.deadline.Sub(sub.SubmittedAt))
	p.Score += sub.Points
	return SubmitResult{Correct: true, Points: sub.Points}
}

func (qr *questionRound) Resolve(r *Room) *RevealData {
	q := qr.q
	counts := r.countsLocked(q)
	data := &RevealData{
		QuestionID: q.ID,
		Kind:       models.PhaseQuestion,
		Question:   q.Clone(),
		Counts:     counts,
	}
	if q.IsPoll() {
		winners := plurality(q.Answers, counts)
		data.WinningAnswers = winners
		for _, sub := range r.submissionsForLocked(q.ID) {
			if slices.Contains(winners, sub.Choice) {
				sub.Correct = true
				sub.Points = r.settings.PollPoints
				r.participants[sub.ParticipantID].Score += sub.Points
			}
		}
	} else {
		data.CorrectAnswer = q.CorrectAnswer
	}
	data.Results = r.resultsLocked(q.ID, qr.Eligible)
	return data
}

// speedPoints awards the base value plus a bonus per whole time unit left.
// It never increases as remaining shrinks.
func (s Settings) speedPoints(remaining time.Duration) int {
	if remaining < 0 {
		remaining = 0
	}
	return s.BasePoints + s.SpeedBonusPerSecond*int(remaining/s.TimeUnit)
}

// plurality returns every option tied for the most votes, in option order.
// No votes means no winner.
func plurality(options []string, counts map[string]int) []string {
	best := 0
	for _, o := range options {
		best = max(best, counts[o])
	}
	if best == 0 {
		return nil
	}
	var winners []string
	for _, o := range options {
		if counts[o] == best {
			winners = append(winners, o)
		}
	}
	return winners
}

// countsLocked tallies submissions per option, zero-filled.
func (r *Room) countsLocked(q *models.Question) map[string]int {
	counts := make(map[string]int, len(q.Answers))
	for _, a := range q.Answers {
		counts[a] = 0
	}
	for _, sub := range r.submissionsForLocked(q.ID) {
		counts[sub.Choice]++
	}
	return counts
}

// submissionsForLocked lists the submissions for a question in join order.
func (r *Room) submissionsForLocked(qid int) []*models.Submission {
	var out []*models.Submission
	for _, id := range r.order {
		if sub, ok := r.submissions[models.SubmissionKey{ParticipantID: id, QuestionID: qid}]; ok {
			out = append(out, sub)
		}
	}
	return out
}

// resultsLocked reports every participant who answered or was expected to.
func (r *Room) resultsLocked(qid int, expected func(*models.Participant) bool) []AnswerResult {
	out := make([]AnswerResult, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		sub, answered := r.submissions[models.SubmissionKey{ParticipantID: id, QuestionID: qid}]
		if !answered && !expected(p) {
			continue
		}
		res := AnswerResult{ParticipantID: id, Answered: answered}
		if answered {
			res.Choice = sub.Choice
			res.Correct = sub.Correct
			res.Points = sub.Points
		}
		out = append(out, res)
	}
	return out
}

// Rank orders participants by score, highest first. Equal scores share a rank
// (1 + the number of strictly higher scores) and keep join order.
func Rank(participants []models.Participant) []models.Standing {
	sorted := slices.Clone(participants)
	slices.SortStableFunc(sorted, func(a, b models.Participant) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.JoinOrder, b.JoinOrder)
	})
	out := make([]models.Standing, len(sorted))
	for i, p := range sorted {
		rank := i + 1
		if i > 0 && p.Score == sorted[i-1].Score {
			rank = out[i-1].Rank
		}
		out[i] = models.Standing{
			Rank:            rank,
			ParticipantID:   p.ID,
			Name:            p.Name,
			Score:           p.Score,
			Status:          p.Status,
			Progress:        p.Progress,
			AnsweredCurrent: p.AnsweredCurrent,
		}
	}
	return out
}

func (r *Room) standingsLocked() []models.Standing {
	return Rank(r.rosterLocked())
}

func (r *Room) standingOfLocked(id uuid.UUID) models.Standing {
	for _, s := range r.standingsLocked() {
		if s.ParticipantID == id {
			return s
		}
	}
	return models.Standing{}
}

func (r *Room) summaryLocked() models.RoomSummary {
	standings := r.standingsLocked()
	s := models.RoomSummary{
		SessionID:         r.session,
		RoomCode:          r.code,
		HostName:          r.hostName,
		TotalParticipants: len(standings),
		TotalQuestions:    len(r.deck),
		Leaderboard:       standings,
		StartedAt:         r.startedAt,
		FinishedAt:        r.finishedAt,
	}
	if len(standings) > 0 {
		top := standings[0]
		s.Winner = &top
		total := 0
		for _, st := range standings {
			total += st.Score
		}
		s.AverageScore = float64(total) / float64(len(standings))
	}
	if r.sprintWinner != uuid.Nil {
		sw := r.standingOfLocked(r.sprintWinner)
		s.SprintWinner = &sw
	}
	if !r.startedAt.IsZero() {
		s.DurationMinutes = int(r.finishedAt.Sub(r.startedAt).Minutes())
	}
	return s
}
