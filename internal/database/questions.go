package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/questions"
)

// QuestionBank serves decks from the questions table. Rows are ordered by
// position; consecutive final_sprint rows form one sprint entry.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

// Deck implements questions.Source.
func (b *QuestionBank) Deck(ctx context.Context, req questions.Request) ([]models.Question, error) {
	cats := make([]string, 0, len(req.Categories))
	for _, c := range req.Categories {
		cats = append(cats, strings.ToLower(c))
	}
	q := `
		SELECT phase_kind, category, question_type, prompt, answers,
		       correct_answer, time_limit, context, difficulty
		FROM questions
		WHERE phase_kind <> 'question'
		   OR cardinality($1::text[]) = 0
		   OR lower(category) = ANY($1)
		ORDER BY position, id
	`
	rows, err := b.pool.Query(ctx, q, cats)
	if err != nil {
		return nil, fmt.Errorf("query question bank: %w", err)
	}
	defer rows.Close()

	var deck []models.Question
	var sprint *models.Question
	for rows.Next() {
		var qu models.Question
		var kind string
		if err := rows.Scan(&kind, &qu.Category, &qu.Type, &qu.Prompt, &qu.Answers,
			&qu.CorrectAnswer, &qu.TimeLimitSec, &qu.Context, &qu.Difficulty); err != nil {
			return nil, err
		}
		qu.PhaseKind = models.Phase(kind)
		if qu.PhaseKind == models.PhaseFinalSprint {
			if sprint == nil {
				deck = append(deck, models.Question{
					PhaseKind: models.PhaseFinalSprint,
					Category:  qu.Category,
					Type:      qu.Type,
					Prompt:    "Final Sprint",
				})
				sprint = &deck[len(deck)-1]
			}
			sprint.SprintDeck = append(sprint.SprintDeck, qu)
			continue
		}
		sprint = nil
		deck = append(deck, qu)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Category filtering happened in SQL; Static applies the limit.
	return questions.Static{Questions: deck}.Deck(ctx, questions.Request{Limit: req.Limit})
}

// CountQuestions reports how many rows the bank holds.
func (b *QuestionBank) CountQuestions(ctx context.Context) (int, error) {
	var n int
	err := b.pool.QueryRow(ctx, `SELECT count(*) FROM questions`).Scan(&n)
	return n, err
}

// ImportQuestions appends a deck after the current last position. Sprint
// entries are flattened into consecutive final_sprint rows.
func (b *QuestionBank) ImportQuestions(ctx context.Context, deck []models.Question) (int, error) {
	inserted := 0
	err := pgx.BeginTxFunc(ctx, b.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var pos int
		if err := tx.QueryRow(ctx, `SELECT coalesce(max(position), 0) FROM questions`).Scan(&pos); err != nil {
			return err
		}
		insertQ := `
			INSERT INTO questions (
				position, phase_kind, category, question_type, prompt, answers,
				correct_answer, time_limit, context, difficulty
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		insert := func(q models.Question, kind models.Phase) error {
			pos++
			inserted++
			_, err := tx.Exec(ctx, insertQ, pos, string(kind), q.Category, q.Type, q.Prompt,
				q.Answers, q.CorrectAnswer, q.TimeLimitSec, q.Context, q.Difficulty)
			return err
		}
		for _, q := range deck {
			if q.PhaseKind != models.PhaseFinalSprint {
				if err := insert(q, q.PhaseKind); err != nil {
					return err
				}
				continue
			}
			for _, sub := range q.SprintDeck {
				if err := insert(sub, models.PhaseFinalSprint); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import questions: %w", err)
	}
	return inserted, nil
}
