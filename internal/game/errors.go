package game

import "errors"

// Error kinds. Every error returned by a Room or Registry matches exactly one
// of these with errors.Is.
var (
	ErrValidation     = errors.New("validation")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrStateConflict  = errors.New("state conflict")
	ErrNotFound       = errors.New("not found")
	ErrCodesExhausted = errors.New("room codes exhausted")
)

// reasonError is a specific rejection reason that unwraps to its kind.
type reasonError struct {
	kind error
	msg  string
}

func (e *reasonError) Error() string { return e.msg }
func (e *reasonError) Unwrap() error { return e.kind }

func reason(kind error, msg string) error {
	return &reasonError{kind: kind, msg: msg}
}

var (
	ErrBadRoomCode   = reason(ErrValidation, "invalid room code")
	ErrEmptyName     = reason(ErrValidation, "display name is required")
	ErrNameTooLong   = reason(ErrValidation, "display name is too long")
	ErrEmptyChoice   = reason(ErrValidation, "answer is required")
	ErrUnknownChoice = reason(ErrValidation, "answer is not one of the options")
	ErrBadTarget     = reason(ErrValidation, "target is not an alive participant")
	ErrEmptyDeck     = reason(ErrValidation, "question deck is empty")
	ErrBadQuestion   = reason(ErrValidation, "question deck entry is invalid")

	ErrMissingCredential = reason(ErrUnauthorized, "host credential required")
	ErrBadCredential     = reason(ErrUnauthorized, "host credential rejected")
	ErrIneligible        = reason(ErrUnauthorized, "participant is not eligible to answer this round")

	ErrAlreadyStarted      = reason(ErrStateConflict, "game already started")
	ErrNotStarted          = reason(ErrStateConflict, "game has not started")
	ErrGameFinished        = reason(ErrStateConflict, "game is finished")
	ErrRoomClosed          = reason(ErrStateConflict, "room is closed")
	ErrEmptyRoster         = reason(ErrStateConflict, "no participants have joined")
	ErrNameTaken           = reason(ErrStateConflict, "display name is already taken")
	ErrRoomFull            = reason(ErrStateConflict, "room is full")
	ErrNotAnswerable       = reason(ErrStateConflict, "no question is open for answers")
	ErrStaleQuestion       = reason(ErrStateConflict, "question is no longer active")
	ErrDuplicateSubmission = reason(ErrStateConflict, "answer already submitted")
	ErrTimeUp              = reason(ErrStateConflict, "time is up for this question")

	ErrRoomNotFound        = reason(ErrNotFound, "room not found")
	ErrParticipantNotFound = reason(ErrNotFound, "participant not found")
)

// Kind names the error kind of err, or "internal" when it has none.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCodesExhausted):
		return "exhausted"
	default:
		return "internal"
	}
}
