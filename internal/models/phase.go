// internal/models/phase.go
package models

// Phase is the stage a room is in. Exactly one phase is active at a time.
type Phase string

const (
	PhaseLobby       Phase = "lobby"        // accepting joins
	PhaseQuestion    Phase = "question"     // standard prompt, alive participants answer
	PhaseMinigame    Phase = "minigame"     // targeted elimination round
	PhaseFinalSprint Phase = "final_sprint" // race to the goal, ghosts included
	PhaseReveal      Phase = "reveal"       // answer + stats disclosed, submissions closed
	PhaseFinished    Phase = "finished"     // terminal, leaderboard frozen
)

var phaseTransitions = map[Phase][]Phase{
	PhaseLobby:       {PhaseQuestion, PhaseMinigame, PhaseFinalSprint},
	PhaseQuestion:    {PhaseReveal},
	PhaseMinigame:    {PhaseReveal},
	PhaseFinalSprint: {PhaseReveal, PhaseFinished},
	PhaseReveal:      {PhaseQuestion, PhaseMinigame, PhaseFinalSprint, PhaseFinished},
}

// String returns the wire name of the phase.
func (p Phase) String() string {
	return string(p)
}

// Answerable reports whether submissions are accepted while in this phase.
func (p Phase) Answerable() bool {
	return p == PhaseQuestion || p == PhaseMinigame || p == PhaseFinalSprint
}

// IsDeckKind reports whether p can label a deck entry.
func (p Phase) IsDeckKind() bool {
	return p.Answerable()
}

// CanTransitionTo checks whether moving from p to target is a legal edge.
// Any phase other than finished may also be torn down, which is not a transition.
func (p Phase) CanTransitionTo(target Phase) bool {
	for _, next := range phaseTransitions[p] {
		if next == target {
			return true
		}
	}
	return false
}
