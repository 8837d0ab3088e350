// Package questions provides question decks for new rooms.
package questions

import (
	"context"
	"slices"
	"strings"

	"github.com/jason-s-yu/trivia/internal/models"
)

// Request narrows the deck a source returns.
type Request struct {
	Categories []string
	Limit      int
}

// Source supplies an ordered deck of question records.
type Source interface {
	Deck(ctx context.Context, req Request) ([]models.Question, error)
}

// Static serves a fixed in-memory deck.
type Static struct {
	Questions []models.Question
}

// Deck returns a copy of the matching questions. Limit counts question
// entries only; minigame and sprint entries are always kept.
func (s Static) Deck(_ context.Context, req Request) ([]models.Question, error) {
	out := make([]models.Question, 0, len(s.Questions))
	plain := 0
	for _, q := range s.Questions {
		if q.PhaseKind == models.PhaseQuestion {
			if !matchesCategory(q.Category, req.Categories) {
				continue
			}
			if req.Limit > 0 && plain >= req.Limit {
				continue
			}
			plain++
		}
		out = append(out, q.Clone())
	}
	return out, nil
}

func matchesCategory(category string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	return slices.ContainsFunc(wanted, func(w string) bool {
		return strings.EqualFold(w, category)
	})
}
