// internal/game/game_test.go
package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/questions"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (mb *mockBroadcaster) Broadcast(ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.events = append(mb.events, ev)
}

func (mb *mockBroadcaster) all() []Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return append([]Event(nil), mb.events...)
}

func (mb *mockBroadcaster) ofType(typ EventType) []Event {
	var out []Event
	for _, ev := range mb.all() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.events = nil
}

// waitFor blocks until at least n events of typ arrived.
func (mb *mockBroadcaster) waitFor(t *testing.T, typ EventType, n int, timeout time.Duration) []Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(mb.ofType(typ)) >= n }, timeout, 2*time.Millisecond,
		"waiting for %d %s event(s)", n, typ)
	return mb.ofType(typ)
}

// fakeCreds accepts "host-<room>" as the host token of a room.
type fakeCreds struct{}

func (fakeCreds) IssueHost(room string) (string, string, error) {
	return "host-" + room, "digest-" + room, nil
}

func (fakeCreds) VerifyHost(room, token, digest string) error {
	if token != "host-"+room || digest != "digest-"+room {
		return assert.AnError
	}
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

// testSettings keeps timers in milliseconds. A deck time_limit of 100 is one second.
func testSettings() Settings {
	return Settings{
		TimeUnit:         10 * time.Millisecond,
		AutoAdvanceDelay: 100 * time.Millisecond,
		RevealDwell:      -1,
		SprintGoal:       2,
		BasePoints:       100,
		PollPoints:       50,
	}
}

func trivia(prompt, correct string, wrong ...string) models.Question {
	return models.Question{
		PhaseKind:     models.PhaseQuestion,
		Category:      "test",
		Type:          models.QuestionTypeTrivia,
		Prompt:        prompt,
		Answers:       append([]string{correct}, wrong...),
		CorrectAnswer: correct,
		TimeLimitSec:  100,
	}
}

func poll(prompt string, options ...string) models.Question {
	return models.Question{
		PhaseKind:    models.PhaseQuestion,
		Type:         models.QuestionTypePoll,
		Prompt:       prompt,
		Answers:      options,
		TimeLimitSec: 100,
	}
}

func minigame(prompt, safe string, others ...string) models.Question {
	q := trivia(prompt, safe, others...)
	q.PhaseKind = models.PhaseMinigame
	return q
}

func sprint(subs ...models.Question) models.Question {
	return models.Question{PhaseKind: models.PhaseFinalSprint, Prompt: "Final Sprint", SprintDeck: subs}
}

func basicDeck() []models.Question {
	return []models.Question{
		trivia("Q1", "A", "B", "C", "D"),
		trivia("Q2", "A", "B", "C", "D"),
	}
}

type testRoom struct {
	*Room
	mb      *mockBroadcaster
	token   string
	players []models.Participant
}

// setupTestRoom creates a room with numPlayers joined and the events cleared.
func setupTestRoom(t *testing.T, numPlayers int, deck []models.Question, s Settings) *testRoom {
	t.Helper()
	mb := &mockBroadcaster{}
	reg := NewRegistry(RegistryConfig{
		Source:      questions.Static{Questions: deck},
		Credentials: fakeCreds{},
		Broadcaster: mb,
		Settings:    s,
		Logger:      quietLogger(),
	})
	t.Cleanup(reg.Shutdown)

	room, cred, err := reg.Create(context.Background(), CreateOptions{HostName: "Host"})
	require.NoError(t, err)

	tr := &testRoom{Room: room, mb: mb, token: cred.Token}
	for i := 0; i < numPlayers; i++ {
		p, err := room.Join(string(rune('A'+i)) + "-player")
		require.NoError(t, err)
		tr.players = append(tr.players, p)
	}
	mb.clear()
	return tr
}

func (tr *testRoom) start(t *testing.T) {
	t.Helper()
	require.NoError(t, tr.Start(tr.token))
}

func (tr *testRoom) activeQuestionID(t *testing.T) int {
	t.Helper()
	snap := tr.Snapshot()
	require.NotNil(t, snap.Question, "no open question in phase %s", snap.Phase)
	return snap.Question.ID
}

func (tr *testRoom) participant(t *testing.T, id uuid.UUID) models.Participant {
	t.Helper()
	p, err := tr.Participant(id)
	require.NoError(t, err)
	return p
}

func TestJoinRules(t *testing.T) {
	s := testSettings()
	s.MaxPlayers = 2
	tr := setupTestRoom(t, 0, basicDeck(), s)

	_, err := tr.Join("   ")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = tr.Join("a-name-that-is-far-too-long-to-display")
	assert.ErrorIs(t, err, ErrNameTooLong)

	alice, err := tr.Join("Alice")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, alice.ID)
	assert.Equal(t, models.StatusAlive, alice.Status)
	assert.Equal(t, 0, alice.JoinOrder)

	_, err = tr.Join("ALICE")
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = tr.Join("Bob")
	require.NoError(t, err)
	_, err = tr.Join("Carol")
	assert.ErrorIs(t, err, ErrRoomFull)

	lists := tr.mb.ofType(EventPlayerListUpdated)
	require.Len(t, lists, 2)
	assert.Len(t, lists[1].Payload.(PlayerListPayload).Participants, 2)
}

func TestLateJoinRejected(t *testing.T) {
	tr := setupTestRoom(t, 2, basicDeck(), testSettings())
	tr.start(t)

	_, err := tr.Join("Latecomer")
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.Len(t, tr.Snapshot().Participants, 2)
}

func TestStartRequiresHostAndRoster(t *testing.T) {
	tr := setupTestRoom(t, 0, basicDeck(), testSettings())

	assert.ErrorIs(t, tr.Start(""), ErrMissingCredential)
	assert.ErrorIs(t, tr.Start("host-ZZZZZZ"), ErrUnauthorized)
	assert.ErrorIs(t, tr.Start(tr.token), ErrEmptyRoster)

	_, err := tr.Join("Alice")
	require.NoError(t, err)
	require.NoError(t, tr.Start(tr.token))
	assert.ErrorIs(t, tr.Start(tr.token), ErrAlreadyStarted)

	started := tr.mb.ofType(EventGameStarted)
	require.Len(t, started, 1)
	assert.Equal(t, 2, started[0].Payload.(GameStartedPayload).TotalQuestions)
	q := tr.mb.ofType(EventQuestionStarted)
	require.Len(t, q, 1)
	assert.Equal(t, models.PhaseQuestion, q[0].Phase)
	assert.Equal(t, 1, q[0].Payload.(RoundStartedPayload).QuestionNumber)
}

func TestHostOnlyOperations(t *testing.T) {
	tr := setupTestRoom(t, 1, basicDeck(), testSettings())

	_, err := tr.HostQuestion(tr.token)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, tr.Advance(tr.token), ErrNotStarted)
	tr.start(t)

	_, err = tr.HostQuestion("nope")
	assert.ErrorIs(t, err, ErrBadCredential)
	assert.ErrorIs(t, tr.Advance("nope"), ErrUnauthorized)

	view, err := tr.HostQuestion(tr.token)
	require.NoError(t, err)
	assert.Equal(t, "A", view.Question.CorrectAnswer)
	assert.False(t, view.Deadline.IsZero())
}

func TestSubmitFeedbackAndValidation(t *testing.T) {
	tr := setupTestRoom(t, 2, basicDeck(), testSettings())
	a, b := tr.players[0], tr.players[1]

	_, err := tr.Submit(a.ID, 0, "A")
	assert.ErrorIs(t, err, ErrNotStarted)

	tr.start(t)
	qid := tr.activeQuestionID(t)

	_, err = tr.Submit(a.ID, qid, "")
	assert.ErrorIs(t, err, ErrEmptyChoice)
	_, err = tr.Submit(a.ID, qid, "Z")
	assert.ErrorIs(t, err, ErrUnknownChoice)
	_, err = tr.Submit(uuid.New(), qid, "A")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tr.Submit(a.ID, qid+1, "A")
	assert.ErrorIs(t, err, ErrStaleQuestion)

	res, err := tr.Submit(a.ID, qid, "A")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.GreaterOrEqual(t, res.Points, 100)
	assert.False(t, res.Pending)

	res, err = tr.Submit(b.ID, qid, "B")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Zero(t, res.Points)

	answered := tr.mb.ofType(EventPlayerAnswered)
	require.Len(t, answered, 2)
	p := answered[0].Payload.(PlayerAnsweredPayload)
	assert.Equal(t, a.ID, p.ParticipantID)
	assert.Equal(t, 1, p.Answered)
	assert.Equal(t, 2, p.Eligible)
}

func TestDuplicateSubmissionKeepsFirst(t *testing.T) {
	tr := setupTestRoom(t, 2, basicDeck(), testSettings())
	a := tr.players[0]
	tr.start(t)
	qid := tr.activeQuestionID(t)

	first, err := tr.Submit(a.ID, qid, "B")
	require.NoError(t, err)
	_, err = tr.Submit(a.ID, qid, "B")
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.ErrorIs(t, err, ErrStateConflict)
	_, err = tr.Submit(a.ID, qid, "A")
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	assert.Equal(t, first.Points, tr.participant(t, a.ID).Score)
	assert.Zero(t, tr.participant(t, a.ID).Score)
	assert.Len(t, tr.mb.ofType(EventPlayerAnswered), 1)
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	tr := setupTestRoom(t, 2, basicDeck(), testSettings())
	a := tr.players[0]
	tr.start(t)
	qid := tr.activeQuestionID(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Submit(a.ID, qid, "A")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else {
				assert.ErrorIs(t, err, ErrDuplicateSubmission)
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 49, rejected)
	assert.Len(t, tr.mb.ofType(EventPlayerAnswered), 1)
	score := tr.participant(t, a.ID).Score
	assert.Greater(t, score, 0)
	assert.Less(t, score, 200)
}

func TestConcurrentAnswersCompleteOnce(t *testing.T) {
	const n = 8
	s := testSettings()
	s.MaxPlayers = n
	tr := setupTestRoom(t, n, basicDeck(), s)
	tr.start(t)
	qid := tr.activeQuestionID(t)

	var wg sync.WaitGroup
	for _, p := range tr.players {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := tr.Submit(id, qid, "A")
			assert.NoError(t, err)
		}(p.ID)
	}
	wg.Wait()

	assert.Len(t, tr.mb.ofType(EventPlayerAnswered), n)
	assert.Len(t, tr.mb.ofType(EventAllAnswered), 1)

	revealed := tr.mb.waitFor(t, EventAnswerRevealed, 1, time.Second)
	time.Sleep(2 * s.AutoAdvanceDelay)
	assert.Len(t, tr.mb.ofType(EventAnswerRevealed), 1)
	data := revealed[0].Payload.(*RevealData)
	assert.Equal(t, "all_answered", data.Reason)
	assert.Len(t, data.Results, n)
	assert.Equal(t, n, data.Counts["A"])
}

func TestAutoAdvanceWaitsForLastAnswer(t *testing.T) {
	s := testSettings()
	s.AutoAdvanceDelay = 120 * time.Millisecond
	tr := setupTestRoom(t, 4, basicDeck(), s)
	tr.start(t)
	qid := tr.activeQuestionID(t)

	for _, p := range tr.players[:3] {
		_, err := tr.Submit(p.ID, qid, "A")
		require.NoError(t, err)
	}
	// Longer than the delay: nothing may fire while one participant is missing.
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, tr.mb.ofType(EventAllAnswered))
	assert.Empty(t, tr.mb.ofType(EventAnswerRevealed))
	assert.Equal(t, models.PhaseQuestion, tr.Phase())

	last := time.Now()
	_, err := tr.Submit(tr.players[3].ID, qid, "B")
	require.NoError(t, err)

	all := tr.mb.ofType(EventAllAnswered)
	require.Len(t, all, 1)
	assert.Equal(t, s.AutoAdvanceDelay.Milliseconds(), all[0].Payload.(AllAnsweredPayload).DelayMs)

	revealed := tr.mb.waitFor(t, EventAnswerRevealed, 1, time.Second)
	assert.GreaterOrEqual(t, revealed[0].At.Sub(last), s.AutoAdvanceDelay)
	assert.Equal(t, models.PhaseReveal, tr.Phase())
}

func TestDeadlineRevealsIncompleteRound(t *testing.T) {
	deck := basicDeck()
	deck[0].TimeLimitSec = 8 // 80ms
	tr := setupTestRoom(t, 2, deck, testSettings())
	tr.start(t)
	qid := tr.activeQuestionID(t)

	_, err := tr.Submit(tr.players[0].ID, qid, "A")
	require.NoError(t, err)

	revealed := tr.mb.waitFor(t, EventAnswerRevealed, 1, time.Second)
	data := revealed[0].Payload.(*RevealData)
	assert.Equal(t, "deadline", data.Reason)
	assert.Equal(t, "A", data.CorrectAnswer)
	assert.Empty(t, tr.mb.ofType(EventAllAnswered))

	_, err = tr.Submit(tr.players[1].ID, qid, "A")
	assert.ErrorIs(t, err, ErrNotAnswerable)

	var missing *AnswerResult
	for i := range data.Results {
		if data.Results[i].ParticipantID == tr.players[1].ID {
			missing = &data.Results[i]
		}
	}
	require.NotNil(t, missing)
	assert.False(t, missing.Answered)
}

func TestStaleAutoAdvanceIgnoredAfterHostAdvance(t *testing.T) {
	s := testSettings()
	s.AutoAdvanceDelay = 80 * time.Millisecond
	tr := setupTestRoom(t, 1, basicDeck(), s)
	tr.start(t)
	qid := tr.activeQuestionID(t)

	_, err := tr.Submit(tr.players[0].ID, qid, "A")
	require.NoError(t, err)
	require.Len(t, tr.mb.ofType(EventAllAnswered), 1)

	require.NoError(t, tr.Advance(tr.token))
	revealed := tr.mb.ofType(EventAnswerRevealed)
	require.Len(t, revealed, 1)
	assert.Equal(t, "host", revealed[0].Payload.(*RevealData).Reason)

	time.Sleep(3 * s.AutoAdvanceDelay)
	assert.Len(t, tr.mb.ofType(EventAnswerRevealed), 1)
	assert.Equal(t, models.PhaseReveal, tr.Phase())
}

func TestStaleTimerCallbackIsNoop(t *testing.T) {
	tr := setupTestRoom(t, 1, basicDeck(), testSettings())
	tr.start(t)

	tr.mu.Lock()
	stale := tr.instance
	tr.mu.Unlock()
	require.NoError(t, tr.Advance(tr.token))

	fired := make(chan struct{})
	tr.mu.Lock()
	// Re-arm a timer tagged with the old instance by hand.
	current := tr.instance
	tr.instance = stale
	tr.armLocked(timerAutoAdvance, time.Millisecond, func() { close(fired) })
	tr.instance = current
	tr.mu.Unlock()

	select {
	case <-fired:
		t.Fatal("timer armed for an old phase instance ran")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, models.PhaseReveal, tr.Phase())
}

func TestRevealDwellWalksTheDeck(t *testing.T) {
	s := testSettings()
	s.RevealDwell = 30 * time.Millisecond
	s.AutoAdvanceDelay = 10 * time.Millisecond
	tr := setupTestRoom(t, 1, basicDeck(), s)
	a := tr.players[0]
	tr.start(t)

	_, err := tr.Submit(a.ID, 0, "A")
	require.NoError(t, err)
	started := tr.mb.waitFor(t, EventQuestionStarted, 2, time.Second)
	assert.Equal(t, 1, started[1].Payload.(RoundStartedPayload).Question.ID)
	assert.False(t, tr.participant(t, a.ID).AnsweredCurrent)

	_, err = tr.Submit(a.ID, 1, "C")
	require.NoError(t, err)

	finished := tr.mb.waitFor(t, EventGameFinished, 1, time.Second)
	summary := finished[0].Payload.(models.RoomSummary)
	assert.Equal(t, 2, summary.TotalQuestions)
	assert.Equal(t, 1, summary.TotalParticipants)
	require.NotNil(t, summary.Winner)
	assert.Equal(t, a.ID, summary.Winner.ParticipantID)
	assert.Equal(t, "Host", summary.HostName)

	assert.Equal(t, models.PhaseFinished, tr.Phase())
	assert.ErrorIs(t, tr.Advance(tr.token), ErrGameFinished)
	_, err = tr.Submit(a.ID, 1, "A")
	assert.ErrorIs(t, err, ErrGameFinished)

	snap := tr.Snapshot()
	require.NotNil(t, snap.Summary)
	assert.Nil(t, snap.Question)
}

func TestEventsAreSequenced(t *testing.T) {
	tr := setupTestRoom(t, 3, basicDeck(), testSettings())
	tr.start(t)
	qid := tr.activeQuestionID(t)
	for _, p := range tr.players {
		_, err := tr.Submit(p.ID, qid, "A")
		require.NoError(t, err)
	}
	require.NoError(t, tr.Advance(tr.token))
	require.NoError(t, tr.Advance(tr.token))

	events := tr.mb.all()
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].Seq+1, events[i].Seq, "event %d (%s)", i, events[i].Type)
		assert.Equal(t, tr.Code(), events[i].Room)
	}
}

func TestSnapshotForReconnect(t *testing.T) {
	tr := setupTestRoom(t, 2, basicDeck(), testSettings())
	snap := tr.Snapshot()
	assert.Equal(t, models.PhaseLobby, snap.Phase)
	assert.Nil(t, snap.Question)
	assert.Len(t, snap.Participants, 2)

	tr.start(t)
	snap = tr.Snapshot()
	require.NotNil(t, snap.Question)
	assert.Equal(t, "Q1", snap.Question.Prompt)
	assert.Greater(t, snap.RemainingMs, int64(0))
	assert.Len(t, snap.Eligible, 2)
	assert.Nil(t, snap.Reveal)

	_, err := tr.Submit(tr.players[0].ID, snap.Question.ID, "A")
	require.NoError(t, err)
	require.NoError(t, tr.Advance(tr.token))

	snap = tr.Snapshot()
	assert.Equal(t, models.PhaseReveal, snap.Phase)
	require.NotNil(t, snap.Reveal)
	assert.Equal(t, "A", snap.Reveal.CorrectAnswer)
	assert.Equal(t, tr.mb.all()[len(tr.mb.all())-1].Seq, snap.Seq)
	require.Len(t, snap.Leaderboard, 2)
	assert.Equal(t, tr.players[0].ID, snap.Leaderboard[0].ParticipantID)
}

func TestStats(t *testing.T) {
	tr := setupTestRoom(t, 3, basicDeck(), testSettings())
	tr.start(t)
	_, err := tr.Submit(tr.players[0].ID, 0, "A")
	require.NoError(t, err)

	st := tr.Stats()
	assert.Equal(t, tr.Code(), st.RoomCode)
	assert.Equal(t, models.PhaseQuestion, st.Phase)
	assert.Equal(t, 3, st.TotalParticipants)
	assert.Equal(t, 1, st.CurrentQuestion)
	assert.Equal(t, 2, st.TotalQuestions)
	assert.Equal(t, 1, st.ParticipantsAnswered)
	assert.Equal(t, 3, st.EligibleCount)
	assert.Equal(t, 3, st.ConnectedCount)
}

func TestDisconnectPolicy(t *testing.T) {
	t.Run("disconnected participant holds the round open", func(t *testing.T) {
		tr := setupTestRoom(t, 2, basicDeck(), testSettings())
		tr.start(t)
		require.NoError(t, tr.SetConnected(tr.players[1].ID, false))
		_, err := tr.Submit(tr.players[0].ID, 0, "A")
		require.NoError(t, err)
		assert.Empty(t, tr.mb.ofType(EventAllAnswered))
		assert.False(t, tr.participant(t, tr.players[1].ID).Connected)
	})

	t.Run("excluded when configured", func(t *testing.T) {
		s := testSettings()
		s.ExcludeDisconnected = true
		tr := setupTestRoom(t, 2, basicDeck(), s)
		tr.start(t)
		_, err := tr.Submit(tr.players[0].ID, 0, "A")
		require.NoError(t, err)
		assert.Empty(t, tr.mb.ofType(EventAllAnswered))

		require.NoError(t, tr.SetConnected(tr.players[1].ID, false))
		assert.Len(t, tr.mb.ofType(EventAllAnswered), 1)
	})

	t.Run("unknown participant", func(t *testing.T) {
		tr := setupTestRoom(t, 1, basicDeck(), testSettings())
		assert.ErrorIs(t, tr.SetConnected(uuid.New(), false), ErrParticipantNotFound)
	})
}
