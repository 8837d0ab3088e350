package game

import (
	"fmt"
	"math/rand/v2"

	"github.com/jason-s-yu/trivia/internal/models"
)

// prepareDeck copies and validates a deck, assigns question ids, and shuffles
// each question's options once so every role sees the same order.
// Main entries take ids 0..n-1; sprint sub-questions continue from n.
func prepareDeck(src []models.Question, shuffle bool) ([]models.Question, error) {
	if len(src) == 0 {
		return nil, ErrEmptyDeck
	}
	deck := make([]models.Question, len(src))
	nextID := len(src)
	for i, q := range src {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrBadQuestion, i, err)
		}
		q = q.Clone()
		q.ID = i
		if shuffle {
			shuffleAnswers(q.Answers)
		}
		for k := range q.SprintDeck {
			q.SprintDeck[k].ID = nextID
			q.SprintDeck[k].PhaseKind = models.PhaseFinalSprint
			nextID++
			if shuffle {
				shuffleAnswers(q.SprintDeck[k].Answers)
			}
		}
		deck[i] = q
	}
	return deck, nil
}

func shuffleAnswers(a []string) {
	rand.Shuffle(len(a), func(i, j int) { a[i], a[j] = a[j], a[i] })
}
