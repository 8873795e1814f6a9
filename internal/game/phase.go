package game

import "errors"

var (
	ErrIllegalTransition = errors.New("illegal_transition")
	ErrClosed            = errors.New("coordinator_closed")
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRecovering Phase = "recovering"
	PhasePreflight  Phase = "preflight"
	PhaseBuying     Phase = "buying"
	PhaseResetting  Phase = "resetting"
	PhaseSyncing    Phase = "syncing"
	PhasePlaying    Phase = "playing"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleting Phase = "completing"
	PhaseResult     Phase = "result"
	PhaseError      Phase = "error"
)

var Phases = []Phase{
	PhaseIdle, PhaseRecovering, PhasePreflight, PhaseBuying, PhaseResetting, PhaseSyncing,
	PhasePlaying, PhaseSubmitting, PhaseCompleting, PhaseResult, PhaseError,
}

// Error and idle are reachable from every phase and are not listed.
var transitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseRecovering, PhasePreflight, PhasePlaying},
	PhaseRecovering: {PhasePlaying},
	PhasePreflight:  {PhaseBuying},
	PhaseBuying:     {PhaseResetting},
	PhaseResetting:  {PhaseSyncing},
	PhaseSyncing:    {PhasePlaying},
	PhasePlaying:    {PhaseSubmitting, PhaseCompleting},
	PhaseSubmitting: {PhasePlaying, PhaseCompleting},
	PhaseCompleting: {PhaseResult},
	PhaseError:      {PhasePreflight},
}

func ParsePhase(s string) (Phase, bool) {
	for _, p := range Phases {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

func (p Phase) CanTransitionTo(to Phase) bool {
	if to == PhaseError || to == PhaseIdle || to == p {
		return true
	}
	for _, next := range transitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

// CanSetTo is the rule for externally requested transitions. Playing is
// entered from idle, syncing or recovering only by the coordinator itself,
// after confirming the session and setting the timer; callers may only
// return to it from submitting.
func (p Phase) CanSetTo(to Phase) bool {
	if to == PhasePlaying && p != PhaseSubmitting && p != PhasePlaying {
		return false
	}
	return p.CanTransitionTo(to)
}

// Starting reports the phases during which a start or recovery is running.
func (p Phase) Starting() bool {
	switch p {
	case PhasePreflight, PhaseBuying, PhaseResetting, PhaseSyncing, PhaseRecovering:
		return true
	}
	return false
}

func (p Phase) pastPurchase() bool {
	switch p {
	case PhaseResetting, PhaseSyncing, PhasePlaying, PhaseSubmitting, PhaseCompleting, PhaseResult:
		return true
	}
	return false
}

func (p Phase) pastReset() bool {
	switch p {
	case PhaseSyncing, PhasePlaying, PhaseSubmitting, PhaseCompleting, PhaseResult:
		return true
	}
	return false
}
