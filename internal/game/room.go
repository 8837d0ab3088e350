// internal/game/room.go
package game

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/sirupsen/logrus"
)

type timerKind int

const (
	timerDeadline timerKind = iota
	timerAutoAdvance
	timerDwell
)

func (k timerKind) String() string {
	switch k {
	case timerDeadline:
		return "deadline"
	case timerAutoAdvance:
		return "auto_advance"
	case timerDwell:
		return "reveal_dwell"
	}
	return "unknown"
}

// Room is one game instance. All mutations go through mu; events produced
// under mu are queued in outbox and delivered by flush after mu is released.
type Room struct {
	session    uuid.UUID // distinguishes rooms that reuse a code across restarts
	code       string
	hostName   string
	hostDigest string
	createdAt  time.Time

	settings    Settings
	creds       Credentials
	broadcaster Broadcaster
	actions     ActionLog
	results     ResultSink
	log         logrus.FieldLogger
	now         func() time.Time

	mu           sync.RWMutex
	phase        models.Phase
	deck         []models.Question
	cursor       int // index of the active deck entry, -1 before start
	participants map[uuid.UUID]*models.Participant
	order        []uuid.UUID
	submissions  map[models.SubmissionKey]*models.Submission

	round         phaseRound
	instance      uint64
	deadline      time.Time
	allAnsweredAt time.Time
	reveal        *RevealData

	pendingTargets []uuid.UUID
	sprintWinner   uuid.UUID
	timers         map[timerKind]*time.Timer

	startedAt    time.Time
	finishedAt   time.Time
	lastActivity time.Time
	closed       bool
	summary      *models.RoomSummary

	seq            uint64
	outbox         []Event
	pendingSummary *models.RoomSummary

	flushMu sync.Mutex
}

type roomDeps struct {
	code        string
	hostName    string
	hostDigest  string
	deck        []models.Question
	settings    Settings
	creds       Credentials
	broadcaster Broadcaster
	actions     ActionLog
	results     ResultSink
	log         logrus.FieldLogger
	now         func() time.Time
}

func newRoom(d roomDeps) *Room {
	if d.now == nil {
		d.now = time.Now
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	created := d.now()
	return &Room{
		session:      uuid.New(),
		code:         d.code,
		hostName:     d.hostName,
		hostDigest:   d.hostDigest,
		createdAt:    created,
		settings:     d.settings.withDefaults(),
		creds:        d.creds,
		broadcaster:  d.broadcaster,
		actions:      d.actions,
		results:      d.results,
		log:          d.log.WithField("room", d.code),
		now:          d.now,
		phase:        models.PhaseLobby,
		deck:         d.deck,
		cursor:       -1,
		participants: make(map[uuid.UUID]*models.Participant),
		submissions:  make(map[models.SubmissionKey]*models.Submission),
		timers:       make(map[timerKind]*time.Timer),
		lastActivity: created,
	}
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// Phase returns the current phase.
func (r *Room) Phase() models.Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// Authorize checks a host credential against the room's digest.
func (r *Room) Authorize(token string) error {
	if token == "" {
		return ErrMissingCredential
	}
	if r.creds == nil {
		return ErrBadCredential
	}
	if err := r.creds.VerifyHost(r.code, token, r.hostDigest); err != nil {
		r.log.WithError(err).Warn("host credential rejected")
		return ErrBadCredential
	}
	return nil
}

// Join adds a participant while the room is in the lobby.
func (r *Room) Join(name string) (models.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Participant{}, ErrEmptyName
	}
	if utf8.RuneCountInString(name) > r.settings.MaxNameLength {
		return models.Participant{}, ErrNameTooLong
	}

	var joined models.Participant
	err := r.mutate(func() error {
		if r.closed {
			return ErrRoomClosed
		}
		if r.phase != models.PhaseLobby {
			return ErrAlreadyStarted
		}
		if len(r.order) >= r.settings.MaxPlayers {
			return ErrRoomFull
		}
		for _, p := range r.participants {
			if strings.EqualFold(p.Name, name) {
				return ErrNameTaken
			}
		}
		p := &models.Participant{
			ID:        uuid.New(),
			Name:      name,
			Status:    models.StatusAlive,
			Connected: true,
			JoinOrder: len(r.order),
			JoinedAt:  r.now(),
		}
		r.participants[p.ID] = p
		r.order = append(r.order, p.ID)
		joined = *p
		r.log.WithFields(logrus.Fields{"participant": p.ID, "name": p.Name}).Info("participant joined")
		r.emitLocked(EventPlayerListUpdated, PlayerListPayload{Participants: r.rosterLocked()})
		return nil
	})
	return joined, err
}

// Participant returns a copy of one roster entry.
func (r *Room) Participant(id uuid.UUID) (models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return models.Participant{}, ErrParticipantNotFound
	}
	return *p, nil
}

// SetConnected records whether a participant's device is connected. The roster
// entry is never removed.
func (r *Room) SetConnected(id uuid.UUID, connected bool) error {
	return r.mutate(func() error {
		p, ok := r.participants[id]
		if !ok {
			return ErrParticipantNotFound
		}
		if p.Connected == connected {
			return nil
		}
		p.Connected = connected
		r.log.WithFields(logrus.Fields{"participant": id, "connected": connected}).Info("participant connection changed")
		if r.closed {
			return nil
		}
		r.emitLocked(EventPlayerListUpdated, PlayerListPayload{Participants: r.rosterLocked()})
		if r.settings.ExcludeDisconnected {
			r.checkAllAnsweredLocked()
		}
		return nil
	})
}

// Start leaves the lobby and opens the first deck entry.
func (r *Room) Start(token string) error {
	if err := r.Authorize(token); err != nil {
		return err
	}
	return r.mutate(func() error {
		if r.closed {
			return ErrRoomClosed
		}
		if r.phase != models.PhaseLobby {
			return ErrAlreadyStarted
		}
		if len(r.order) == 0 {
			return ErrEmptyRoster
		}
		r.startedAt = r.now()
		r.log.WithField("participants", len(r.order)).Info("game started")
		r.emitLocked(EventGameStarted, GameStartedPayload{TotalQuestions: len(r.deck), StartedAt: r.startedAt})
		r.cursor = 0
		r.enterEntryLocked()
		return nil
	})
}

// Advance is the host override: it reveals an open round, or moves past a reveal.
func (r *Room) Advance(token string) error {
	if err := r.Authorize(token); err != nil {
		return err
	}
	return r.mutate(func() error {
		if r.closed {
			return ErrRoomClosed
		}
		switch {
		case r.phase == models.PhaseLobby:
			return ErrNotStarted
		case r.phase == models.PhaseFinished:
			return ErrGameFinished
		case r.phase.Answerable():
			r.revealLocked("host")
		case r.phase == models.PhaseReveal:
			r.nextLocked()
		}
		return nil
	})
}

// SelectTargets sets the targets of the next minigame to open.
func (r *Room) SelectTargets(token string, ids []uuid.UUID) error {
	if err := r.Authorize(token); err != nil {
		return err
	}
	return r.mutate(func() error {
		if r.closed {
			return ErrRoomClosed
		}
		if r.phase == models.PhaseFinished {
			return ErrGameFinished
		}
		seen := make(map[uuid.UUID]bool, len(ids))
		targets := make([]uuid.UUID, 0, len(ids))
		for _, id := range ids {
			p, ok := r.participants[id]
			if !ok {
				return ErrParticipantNotFound
			}
			if p.IsGhost() {
				return ErrBadTarget
			}
			if !seen[id] {
				seen[id] = true
				targets = append(targets, id)
			}
		}
		r.pendingTargets = targets
		r.log.WithField("targets", len(targets)).Info("minigame targets selected")
		return nil
	})
}

// HostView is the authoritative question for the host, answer key included.
type HostView struct {
	Phase          models.Phase    `json:"phase"`
	Question       models.Question `json:"question"`
	QuestionNumber int             `json:"question_number"`
	TotalQuestions int             `json:"total_questions"`
	SafeAnswer     string          `json:"safe_answer,omitempty"`
	Deadline       time.Time       `json:"deadline,omitzero"`
}

// HostQuestion returns the active (or last revealed) question with its answer.
func (r *Room) HostQuestion(token string) (HostView, error) {
	if err := r.Authorize(token); err != nil {
		return HostView{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.round == nil {
		return HostView{}, ErrNotStarted
	}
	view := HostView{
		Phase:          r.phase,
		Question:       r.round.Question().Clone(),
		QuestionNumber: r.cursor + 1,
		TotalQuestions: len(r.deck),
	}
	if mg, ok := r.round.(*minigameRound); ok {
		view.SafeAnswer = mg.safe
	}
	if r.phase.Answerable() {
		view.Deadline = r.deadline
	}
	return view, nil
}

// SubmitResult is the feedback for the submitting participant. For polls and
// minigames the outcome is only known at reveal, so Pending is set.
type SubmitResult struct {
	QuestionID   int    `json:"question_id"`
	Choice       string `json:"choice"`
	Pending      bool   `json:"pending"`
	Correct      bool   `json:"correct"`
	Points       int    `json:"points"`
	Progress     int    `json:"progress,omitempty"`
	SprintWinner bool   `json:"sprint_winner,omitempty"`
}

// Submit records one answer. At most one submission per participant and
// question is ever stored; a repeat returns ErrDuplicateSubmission.
func (r *Room) Submit(participantID uuid.UUID, questionID int, choice string) (SubmitResult, error) {
	if choice == "" {
		return SubmitResult{}, ErrEmptyChoice
	}
	var res SubmitResult
	err := r.mutate(func() error {
		var err error
		res, err = r.submitLocked(participantID, questionID, choice)
		return err
	})
	return res, err
}

func (r *Room) submitLocked(pid uuid.UUID, qid int, choice string) (SubmitResult, error) {
	if r.closed {
		return SubmitResult{}, ErrRoomClosed
	}
	p, ok := r.participants[pid]
	if !ok {
		return SubmitResult{}, ErrParticipantNotFound
	}
	if !r.phase.Answerable() {
		switch r.phase {
		case models.PhaseLobby:
			return SubmitResult{}, ErrNotStarted
		case models.PhaseFinished:
			return SubmitResult{}, ErrGameFinished
		}
		return SubmitResult{}, ErrNotAnswerable
	}
	q := r.round.Question()
	if q.ID != qid {
		return SubmitResult{}, ErrStaleQuestion
	}
	if !r.round.Eligible(p) {
		return SubmitResult{}, ErrIneligible
	}
	if !q.HasAnswer(choice) {
		return SubmitResult{}, ErrUnknownChoice
	}
	key := models.SubmissionKey{ParticipantID: pid, QuestionID: qid}
	if _, dup := r.submissions[key]; dup {
		return SubmitResult{}, ErrDuplicateSubmission
	}
	now := r.now()
	if !now.Before(r.deadline) {
		return SubmitResult{}, ErrTimeUp
	}

	sub := &models.Submission{
		ParticipantID: pid,
		QuestionID:    qid,
		Choice:        choice,
		SubmittedAt:   now,
	}
	r.submissions[key] = sub
	p.AnsweredCurrent = true

	answered, eligible := r.answerCountsLocked()
	r.log.WithFields(logrus.Fields{
		"phase":       r.phase,
		"participant": pid,
		"question":    qid,
		"answered":    answered,
		"eligible":    eligible,
	}).Debug("answer accepted")
	r.emitLocked(EventPlayerAnswered, PlayerAnsweredPayload{ParticipantID: pid, Answered: answered, Eligible: eligible})

	res := r.round.Accept(r, p, sub)
	res.QuestionID = qid
	res.Choice = choice

	if res.SprintWinner {
		r.declareSprintWinnerLocked(p)
		return res, nil
	}
	r.checkAllAnsweredLocked()
	return res, nil
}

// mutate runs fn under the write lock and then delivers queued events.
func (r *Room) mutate(fn func() error) error {
	r.mu.Lock()
	err := fn()
	if err == nil {
		r.lastActivity = r.now()
	}
	r.mu.Unlock()
	r.flush()
	return err
}

// emitLocked queues an event. Caller holds mu.
func (r *Room) emitLocked(t EventType, payload any) {
	r.seq++
	r.outbox = append(r.outbox, Event{
		Type:     t,
		Room:     r.code,
		Seq:      r.seq,
		Phase:    r.phase,
		Instance: r.instance,
		At:       r.now(),
		Payload:  payload,
	})
}

// flush delivers queued events in sequence order. flushMu keeps two
// concurrent flushers from interleaving.
func (r *Room) flush() {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	pending := r.outbox
	r.outbox = nil
	summary := r.pendingSummary
	r.pendingSummary = nil
	r.mu.Unlock()

	for _, ev := range pending {
		if r.broadcaster != nil {
			r.broadcaster.Broadcast(ev)
		}
		r.record(ev)
	}
	if summary != nil && r.results != nil {
		go func(s models.RoomSummary) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.results.StoreResults(ctx, s); err != nil {
				r.log.WithError(err).Error("failed to store room results")
			}
		}(*summary)
	}
}

// record publishes the event to the action log without blocking the caller.
func (r *Room) record(ev Event) {
	if r.actions == nil {
		return
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		r.log.WithError(err).WithField("event", ev.Type).Warn("failed to encode action payload")
		return
	}
	rec := cache.RoomActionRecord{
		SessionID:     r.session,
		RoomCode:      ev.Room,
		ActionIndex:   ev.Seq,
		ActionType:    string(ev.Type),
		Phase:         string(ev.Phase),
		Instance:      ev.Instance,
		ActionPayload: payload,
		Timestamp:     ev.At.UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.actions.Append(ctx, rec); err != nil {
			r.log.WithError(err).WithField("event", rec.ActionType).Warn("failed to publish room action")
		}
	}()
}

// close tears the room down. Pending timers become no-ops.
func (r *Room) close(why string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.stopTimersLocked()
	r.instance++
	r.emitLocked(EventRoomClosed, RoomClosedPayload{Reason: why})
	r.closed = true
	r.log.WithField("reason", why).Info("room closed")
	r.mu.Unlock()
	r.flush()
}

// idleSince returns the time of the last accepted mutation.
func (r *Room) idleSince() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// rosterLocked copies the roster in join order.
func (r *Room) rosterLocked() []models.Participant {
	out := make([]models.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}
