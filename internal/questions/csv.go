package questions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jason-s-yu/trivia/internal/models"
)

// csvColumns is the required header, in any order.
var csvColumns = []string{
	"phase_kind", "category", "question_type", "question",
	"correct_answer", "wrong_answer_1", "wrong_answer_2", "wrong_answer_3", "time_limit",
}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("csv header is missing a column")

// LoadCSVFile reads a question deck from a CSV file.
func LoadCSVFile(path string) ([]models.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question csv: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV parses a question deck. Consecutive final_sprint rows form one
// sprint entry. Poll rows use correct_answer as just another option; the
// answer key is dropped. Blank option cells are skipped.
func LoadCSV(r io.Reader) ([]models.Question, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var deck []models.Question
	var sprint *models.Question
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		q, err := parseRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if q.PhaseKind == models.PhaseFinalSprint {
			if sprint == nil {
				deck = append(deck, models.Question{
					PhaseKind: models.PhaseFinalSprint,
					Category:  q.Category,
					Type:      q.Type,
					Prompt:    "Final Sprint",
				})
				sprint = &deck[len(deck)-1]
			}
			sprint.SprintDeck = append(sprint.SprintDeck, q)
			continue
		}
		sprint = nil
		deck = append(deck, q)
	}
	for i, q := range deck {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("deck entry %d: %w", i, err)
		}
	}
	return deck, nil
}

func parseRow(rec []string, idx map[string]int) (models.Question, error) {
	get := func(col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	kind := models.Phase(strings.ToLower(get("phase_kind")))
	if kind == "" {
		kind = models.PhaseQuestion
	}
	q := models.Question{
		PhaseKind:     kind,
		Category:      get("category"),
		Type:          strings.ToLower(get("question_type")),
		Prompt:        get("question"),
		CorrectAnswer: get("correct_answer"),
	}
	if q.Type == "" {
		q.Type = models.QuestionTypeTrivia
	}
	if q.CorrectAnswer != "" {
		q.Answers = append(q.Answers, q.CorrectAnswer)
	}
	for _, col := range []string{"wrong_answer_1", "wrong_answer_2", "wrong_answer_3"} {
		if a := get(col); a != "" {
			q.Answers = append(q.Answers, a)
		}
	}
	if q.IsPoll() {
		q.CorrectAnswer = ""
	}
	if tl := get("time_limit"); tl != "" {
		n, err := strconv.Atoi(tl)
		if err != nil || n < 0 {
			return models.Question{}, fmt.Errorf("bad time_limit %q", tl)
		}
		q.TimeLimitSec = n
	}
	return q, nil
}
