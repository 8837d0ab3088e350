// internal/models/question.go
package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Question types understood by the engine. Anything that is not a poll is scored
// against CorrectAnswer.
const (
	QuestionTypeTrivia     = "trivia"
	QuestionTypePoll       = "poll"
	QuestionTypeMostLikely = "most_likely"
	QuestionTypeReceipts   = "receipts"
)

// MinStandardAnswers is the minimum number of options on a standard question.
const MinStandardAnswers = 4

var (
	ErrEmptyPrompt       = errors.New("question prompt is empty")
	ErrTooFewAnswers     = errors.New("question has too few answers")
	ErrDuplicateAnswer   = errors.New("question answers are not distinct")
	ErrCorrectNotInList  = errors.New("correct answer is not one of the answers")
	ErrBadPhaseKind      = errors.New("question phase kind is not answerable")
	ErrEmptySprintDeck   = errors.New("final sprint entry has no sprint questions")
	ErrNestedSprintEntry = errors.New("sprint questions cannot nest")
)

// Question is one deck entry as produced by a question source.
// ID is assigned by the room when the deck is loaded.
type Question struct {
	ID            int      `json:"id"`
	PhaseKind     Phase    `json:"phase_kind"`
	Category      string   `json:"category"`
	Type          string   `json:"question_type"`
	Prompt        string   `json:"prompt"`
	Answers       []string `json:"answers"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	TimeLimitSec  int      `json:"time_limit"`
	Context       string   `json:"context,omitempty"`
	Difficulty    int      `json:"difficulty,omitempty"`

	// SprintDeck holds the mini-deck iterated by a final_sprint entry.
	SprintDeck []Question `json:"sprint_deck,omitempty"`
}

// PublicQuestion is what participants see before reveal: no correct answer.
type PublicQuestion struct {
	ID           int      `json:"id"`
	PhaseKind    Phase    `json:"phase_kind"`
	Category     string   `json:"category"`
	Type         string   `json:"question_type"`
	Prompt       string   `json:"prompt"`
	Answers      []string `json:"answers"`
	TimeLimitSec int      `json:"time_limit"`
	Context      string   `json:"context,omitempty"`
}

// IsPoll reports whether the question has no correct answer known in advance.
func (q Question) IsPoll() bool {
	return q.Type == QuestionTypePoll
}

// HasAnswer reports whether choice is one of the listed options.
func (q Question) HasAnswer(choice string) bool {
	return slices.Contains(q.Answers, choice)
}

// Public strips the answer key.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:           q.ID,
		PhaseKind:    q.PhaseKind,
		Category:     q.Category,
		Type:         q.Type,
		Prompt:       q.Prompt,
		Answers:      slices.Clone(q.Answers),
		TimeLimitSec: q.TimeLimitSec,
		Context:      q.Context,
	}
}

// Clone returns a deep copy.
func (q Question) Clone() Question {
	c := q
	c.Answers = slices.Clone(q.Answers)
	if q.SprintDeck != nil {
		c.SprintDeck = make([]Question, len(q.SprintDeck))
		for i, sq := range q.SprintDeck {
			c.SprintDeck[i] = sq.Clone()
		}
	}
	return c
}

// Validate checks the deck-entry invariants.
func (q Question) Validate() error {
	if !q.PhaseKind.IsDeckKind() {
		return fmt.Errorf("%w: %q", ErrBadPhaseKind, q.PhaseKind)
	}
	if q.PhaseKind == PhaseFinalSprint {
		if len(q.SprintDeck) == 0 {
			return ErrEmptySprintDeck
		}
		for i, sq := range q.SprintDeck {
			if len(sq.SprintDeck) > 0 {
				return ErrNestedSprintEntry
			}
			if err := sq.validateOptions(MinStandardAnswers); err != nil {
				return fmt.Errorf("sprint question %d: %w", i, err)
			}
		}
		return nil
	}
	min := MinStandardAnswers
	if q.PhaseKind == PhaseMinigame {
		min = 2
	}
	return q.validateOptions(min)
}

func (q Question) validateOptions(min int) error {
	if strings.TrimSpace(q.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if len(q.Answers) < min {
		return fmt.Errorf("%w: have %d, need %d", ErrTooFewAnswers, len(q.Answers), min)
	}
	seen := make(map[string]struct{}, len(q.Answers))
	for _, a := range q.Answers {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateAnswer, a)
		}
		seen[a] = struct{}{}
	}
	if q.IsPoll() && q.PhaseKind == PhaseQuestion {
		return nil
	}
	if !q.HasAnswer(q.CorrectAnswer) {
		return fmt.Errorf("%w: %q", ErrCorrectNotInList, q.CorrectAnswer)
	}
	return nil
}
