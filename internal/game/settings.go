package game

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
)

// Defaults used when a Settings field is left zero.
const (
	DefaultMaxPlayers          = 10
	DefaultQuestionTimeLimit   = 30 * time.Second
	DefaultAutoAdvanceDelay    = 5 * time.Second
	DefaultRevealDwell         = 8 * time.Second
	DefaultSprintGoal          = 5
	DefaultBasePoints          = 100
	DefaultSpeedBonusPerSecond = 2
	DefaultPollPoints          = 100
	DefaultMaxNameLength       = 24
)

// SafeAnswerStrategy designates the safe option of a minigame question. It runs
// once when the minigame opens.
type SafeAnswerStrategy func(q models.Question) string

// AuthoredSafeAnswer uses the deck's correct_answer as the safe option.
func AuthoredSafeAnswer(q models.Question) string {
	return q.CorrectAnswer
}

// RandomSafeAnswer picks one of the options uniformly.
func RandomSafeAnswer(q models.Question) string {
	if len(q.Answers) == 0 {
		return ""
	}
	return q.Answers[rand.IntN(len(q.Answers))]
}

// TargetStrategy picks the minigame targets when the host has not selected any.
// alive is in join order.
type TargetStrategy func(alive []models.Participant) []uuid.UUID

// AllAlive targets every alive participant.
func AllAlive(alive []models.Participant) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(alive))
	for _, p := range alive {
		ids = append(ids, p.ID)
	}
	return ids
}

// Settings tunes a room's rules and timing.
type Settings struct {
	MaxPlayers int

	// QuestionTimeLimit applies to deck entries without a time limit.
	QuestionTimeLimit time.Duration
	// TimeUnit scales a deck entry's time_limit and the speed bonus. Defaults to a second.
	TimeUnit time.Duration

	AutoAdvanceDelay time.Duration
	// RevealDwell is how long reveal stays up before moving on by itself.
	// A negative value leaves reveal waiting for the host.
	RevealDwell time.Duration

	SprintGoal          int
	BasePoints          int
	SpeedBonusPerSecond int
	PollPoints          int
	MaxNameLength       int

	// ExcludeDisconnected drops disconnected participants from the
	// all-answered count. When false a disconnected, unanswered participant
	// holds the round open until the deadline.
	ExcludeDisconnected bool
	ShuffleAnswers      bool

	SafeAnswer SafeAnswerStrategy
	Targets    TargetStrategy
}

// DefaultSettings returns the production rules.
func DefaultSettings() Settings {
	return Settings{
		ShuffleAnswers:      true,
		SpeedBonusPerSecond: DefaultSpeedBonusPerSecond,
	}.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.MaxPlayers <= 0 {
		s.MaxPlayers = DefaultMaxPlayers
	}
	if s.QuestionTimeLimit <= 0 {
		s.QuestionTimeLimit = DefaultQuestionTimeLimit
	}
	if s.TimeUnit <= 0 {
		s.TimeUnit = time.Second
	}
	if s.AutoAdvanceDelay <= 0 {
		s.AutoAdvanceDelay = DefaultAutoAdvanceDelay
	}
	if s.RevealDwell == 0 {
		s.RevealDwell = DefaultRevealDwell
	}
	if s.SprintGoal <= 0 {
		s.SprintGoal = DefaultSprintGoal
	}
	if s.BasePoints <= 0 {
		s.BasePoints = DefaultBasePoints
	}
	if s.SpeedBonusPerSecond < 0 {
		s.SpeedBonusPerSecond = 0
	}
	if s.PollPoints <= 0 {
		s.PollPoints = DefaultPollPoints
	}
	if s.MaxNameLength <= 0 {
		s.MaxNameLength = DefaultMaxNameLength
	}
	if s.SafeAnswer == nil {
		s.SafeAnswer = AuthoredSafeAnswer
	}
	if s.Targets == nil {
		s.Targets = AllAlive
	}
	return s
}

// timeLimit resolves the answer window of a deck entry.
func (s Settings) timeLimit(q *models.Question) time.Duration {
	if q.TimeLimitSec > 0 {
		return time.Duration(q.TimeLimitSec) * s.TimeUnit
	}
	return s.QuestionTimeLimit
}
