package model

// DutyState is the lifecycle state of a duty.
type DutyState string

const (
	StateUnassigned DutyState = "unassigned"
	StateScheduled  DutyState = "scheduled"
	StateAssigned   DutyState = "assigned"
	StateInProgress DutyState = "in_progress"
	StateCompleted  DutyState = "completed"
	StateCancelled  DutyState = "cancelled"
)

// AllStates lists every state in lifecycle order.
var AllStates = []DutyState{
	StateUnassigned,
	StateScheduled,
	StateAssigned,
	StateInProgress,
	StateCompleted,
	StateCancelled,
}

// ActiveStates are the states holding resource reservations.
var ActiveStates = []DutyState{StateAssigned, StateInProgress}

var transitions = map[DutyState][]DutyState{
	StateUnassigned: {StateAssigned, StateCancelled},
	StateScheduled:  {StateAssigned, StateCancelled},
	StateAssigned:   {StateInProgress, StateCancelled},
	StateInProgress: {StateCompleted, StateCancelled},
}

// Valid reports whether s is a known state.
func (s DutyState) Valid() bool {
	for _, st := range AllStates {
		if st == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the state holds reserved resources.
func (s DutyState) IsActive() bool {
	return s == StateAssigned || s == StateInProgress
}

// IsTerminal reports whether no further transition is allowed.
func (s DutyState) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to DutyState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseState converts s to a DutyState.
func ParseState(s string) (DutyState, bool) {
	st := DutyState(s)
	return st, st.Valid()
}
