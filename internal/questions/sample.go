package questions

import "github.com/jason-s-yu/trivia/internal/models"

// Sample is the built-in deck used when no CSV or database is configured.
func Sample() Static {
	return Static{Questions: []models.Question{
		{
			PhaseKind: models.PhaseQuestion, Category: "Geography", Type: models.QuestionTypeTrivia,
			Prompt:        "What is the capital of Australia?",
			Answers:       []string{"Canberra", "Sydney", "Melbourne", "Perth"},
			CorrectAnswer: "Canberra", TimeLimitSec: 30,
		},
		{
			PhaseKind: models.PhaseQuestion, Category: "Science", Type: models.QuestionTypeTrivia,
			Prompt:        "Which planet has the most moons?",
			Answers:       []string{"Saturn", "Jupiter", "Uranus", "Neptune"},
			CorrectAnswer: "Saturn", TimeLimitSec: 30,
		},
		{
			PhaseKind: models.PhaseQuestion, Category: "Party", Type: models.QuestionTypePoll,
			Prompt:       "Best snack for game night?",
			Answers:      []string{"Popcorn", "Nachos", "Pizza", "Fruit"},
			TimeLimitSec: 20,
		},
		{
			PhaseKind: models.PhaseMinigame, Category: "Minigame", Type: models.QuestionTypeTrivia,
			Prompt:        "Pick the door that hides no ghost.",
			Answers:       []string{"Red door", "Blue door", "Green door"},
			CorrectAnswer: "Blue door", TimeLimitSec: 15,
		},
		{
			PhaseKind: models.PhaseQuestion, Category: "History", Type: models.QuestionTypeTrivia,
			Prompt:        "In which year did the Berlin Wall fall?",
			Answers:       []string{"1989", "1991", "1987", "1985"},
			CorrectAnswer: "1989", TimeLimitSec: 30,
		},
		{
			PhaseKind: models.PhaseFinalSprint, Category: "Final Sprint", Prompt: "Final Sprint",
			SprintDeck: []models.Question{
				{Prompt: "2 + 2 * 2 = ?", Answers: []string{"6", "8", "4", "10"}, CorrectAnswer: "6", TimeLimitSec: 10},
				{Prompt: "H2O is?", Answers: []string{"Water", "Salt", "Sugar", "Oxygen"}, CorrectAnswer: "Water", TimeLimitSec: 10},
				{Prompt: "Largest ocean?", Answers: []string{"Pacific", "Atlantic", "Indian", "Arctic"}, CorrectAnswer: "Pacific", TimeLimitSec: 10},
				{Prompt: "Fastest land animal?", Answers: []string{"Cheetah", "Horse", "Lion", "Hare"}, CorrectAnswer: "Cheetah", TimeLimitSec: 10},
				{Prompt: "Square root of 81?", Answers: []string{"9", "8", "7", "11"}, CorrectAnswer: "9", TimeLimitSec: 10},
				{Prompt: "Author of Hamlet?", Answers: []string{"Shakespeare", "Marlowe", "Dickens", "Austen"}, CorrectAnswer: "Shakespeare", TimeLimitSec: 10},
				{Prompt: "Colour of chlorophyll?", Answers: []string{"Green", "Red", "Blue", "Yellow"}, CorrectAnswer: "Green", TimeLimitSec: 10},
			},
		},
	}}
}
