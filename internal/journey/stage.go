package journey

import "fmt"

// PatientStage represents the coarse stages of the patient journey.
// It is deliberately coarser than the active agent: several agents can
// serve a single stage.
type PatientStage string

const (
	StageIdentify        PatientStage = "Identify"         // Patient identified in EMR
	StageInform          PatientStage = "Inform"           // Proactive outreach sent
	StageEducateMotivate PatientStage = "Educate_Motivate" // User logged in (default)
	StageExploreCommit   PatientStage = "Explore_Commit"   // Exploring and selecting goals
	StageEngage          PatientStage = "Engage"           // Working on goals
	StageSustain         PatientStage = "Sustain"          // Maintenance
)

// transitions defines the legal forward (and fallback) moves for each stage.
var transitions = map[PatientStage][]PatientStage{
	StageIdentify:        {StageInform},
	StageInform:          {StageEducateMotivate},
	StageEducateMotivate: {StageExploreCommit},
	// From exploring, commit to a goal (Engage) or go back to learn more.
	StageExploreCommit: {StageEngage, StageEducateMotivate},
	// From Engage, maintain (Sustain) or relapse and re-evaluate (Explore).
	StageEngage:  {StageSustain, StageExploreCommit},
	StageSustain: {StageExploreCommit},
}

// InvalidTransitionError is returned when an illegal stage transition is
// attempted. It carries both stages so callers can report the exact jump.
type InvalidTransitionError struct {
	From PatientStage
	To   PatientStage
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// Valid reports whether s is one of the known patient stages.
func Valid(s PatientStage) bool {
	if _, ok := transitions[s]; ok {
		return true
	}
	return false
}

// CanTransition reports whether moving from current to next is legal.
// Staying in the same stage is always allowed.
func CanTransition(current, next PatientStage) bool {
	if current == next {
		return true
	}
	for _, allowed := range transitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition executes a transition, returning next on success and an
// InvalidTransitionError otherwise.
func Transition(current, next PatientStage) (PatientStage, error) {
	if !CanTransition(current, next) {
		return current, &InvalidTransitionError{From: current, To: next}
	}
	return next, nil
}
