package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState is a state of the per-search state machine.
type SessionState int

const (
	// StateInit is the state of a freshly created session.
	StateInit SessionState = iota

	// StateReady is entered once the session provider reported ready,
	// after the candidates are known and before the first probe.
	StateReady

	// StateGenerating is entered while candidates are derived.
	StateGenerating

	// StateProbing is entered before each candidate is fetched.
	StateProbing

	// StateClassifying is entered once a fetch returned.
	StateClassifying

	// StateExtracting is entered for Found outcomes.
	StateExtracting

	// StateSkipping is entered for every other outcome.
	StateSkipping

	// StateAggregated is entered after the last candidate.
	StateAggregated

	// StateDone is the normal terminal state.
	StateDone

	// StateAborted is the terminal state after a fatal error.
	StateAborted
)

var sessionStateNames = map[SessionState]string{
	StateInit:        "init",
	StateReady:       "ready",
	StateGenerating:  "generating",
	StateProbing:     "probing",
	StateClassifying: "classifying",
	StateExtracting:  "extracting",
	StateSkipping:    "skipping",
	StateAggregated:  "aggregated",
	StateDone:        "done",
	StateAborted:     "aborted",
}

// String returns the state name.
func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the state as its name.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *SessionState) UnmarshalText(text []byte) error {
	for state, name := range sessionStateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(text))
}

// IsTerminal reports whether no further transition is possible.
func (s SessionState) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

// allowedTransitions lists the legal successors of each state.
// Aborted is reachable from every non-terminal state.
//
// Classifying loops back to Probing for an escalation retry of the same
// candidate, and goes straight to Aggregated when escalation stops the run.
// Probing goes to Aggregated when the run is cancelled during the rate
// limiter wait, before anything was fetched.
var allowedTransitions = map[SessionState][]SessionState{
	StateInit:        {StateGenerating},
	StateGenerating:  {StateReady, StateProbing, StateAggregated},
	StateReady:       {StateProbing, StateAggregated},
	StateProbing:     {StateClassifying, StateAggregated},
	StateClassifying: {StateExtracting, StateSkipping, StateProbing, StateAggregated},
	StateExtracting:  {StateProbing, StateAggregated},
	StateSkipping:    {StateProbing, StateAggregated},
	StateAggregated:  {StateDone},
}

// CanTransition reports whether to may follow from.
func CanTransition(from, to SessionState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateAborted {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SearchSession aggregates everything gathered during one search for one
// phone number on one platform. It is owned by a single pipeline run.
type SearchSession struct {
	// ID uniquely identifies the session in logs and history.
	ID string `json:"id"`

	// Platform is the platform searched.
	Platform string `json:"platform"`

	// Target is the normalized phone number. It is empty for username
	// checks, which probe caller-supplied identifiers directly.
	Target PhoneNumber `json:"target,omitempty"`

	// State is the current state machine state.
	State SessionState `json:"state"`

	// Candidates is the ordered candidate list produced by generation.
	Candidates []Candidate `json:"candidates"`

	// Outcomes holds the last outcome per candidate in probing order.
	Outcomes []ProbeOutcome `json:"outcomes"`

	// Records holds one record per Found candidate in probing order.
	Records []ProfileRecord `json:"records"`

	// Summary counts Outcomes per classification.
	Summary Summary `json:"summary"`

	// StartedAt is when the session was created.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when a terminal state was reached.
	FinishedAt time.Time `json:"finishedAt,omitzero"`

	// Interrupted is set when the caller cancelled the run between
	// candidates. Everything gathered before cancellation is kept.
	Interrupted bool `json:"interrupted,omitempty"`

	// Stopped is set when an escalation decision ended the run early.
	Stopped bool `json:"stopped,omitempty"`

	// Err is the fatal error for Aborted sessions.
	Err error `json:"-"`

	// ErrorMessage is the text of Err for serialized reports.
	ErrorMessage string `json:"error,omitempty"`

	// transitions records every state entered, starting with StateInit.
	transitions []SessionState
}

// NewSearchSession creates a session in StateInit.
func NewSearchSession(platform string, target PhoneNumber) *SearchSession {
	return &SearchSession{
		ID:          uuid.NewString(),
		Platform:    platform,
		Target:      target,
		State:       StateInit,
		Candidates:  make([]Candidate, 0),
		Outcomes:    make([]ProbeOutcome, 0),
		Records:     make([]ProfileRecord, 0),
		StartedAt:   time.Now(),
		transitions: []SessionState{StateInit},
	}
}

// Transition moves the session to the given state.
// It returns ErrInvalidTransition when to cannot follow the current state.
func (s *SearchSession) Transition(to SessionState) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	s.transitions = append(s.transitions, to)
	if to.IsTerminal() {
		s.FinishedAt = time.Now()
	}
	return nil
}

// Abort moves the session to StateAborted and records err.
// Aborting a session that already reached a terminal state is a no-op.
func (s *SearchSession) Abort(err error) {
	if s.State.IsTerminal() {
		return
	}
	_ = s.Transition(StateAborted) //nolint:errcheck // Aborted is always reachable from a non-terminal state
	s.Err = err
	if err != nil {
		s.ErrorMessage = err.Error()
	}
}

// Transitions returns the states entered so far, in order.
func (s *SearchSession) Transitions() []SessionState {
	out := make([]SessionState, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// Found returns the records for Found candidates.
func (s *SearchSession) Found() []ProfileRecord {
	return s.Records
}

// Duration returns how long the session ran. For running sessions it
// returns the time elapsed so far.
func (s *SearchSession) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
