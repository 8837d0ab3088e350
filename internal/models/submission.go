package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission is a single accepted answer. At most one exists per
// (ParticipantID, QuestionID).
type Submission struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	QuestionID    int       `json:"question_id"`
	Choice        string    `json:"choice"`
	SubmittedAt   time.Time `json:"submitted_at"`
	Correct       bool      `json:"correct"`
	Points        int       `json:"points"`
}

// SubmissionKey identifies the (participant, question) pair.
type SubmissionKey struct {
	ParticipantID uuid.UUID
	QuestionID    int
}

// Key returns the uniqueness key of s.
func (s Submission) Key() SubmissionKey {
	return SubmissionKey{ParticipantID: s.ParticipantID, QuestionID: s.QuestionID}
}
