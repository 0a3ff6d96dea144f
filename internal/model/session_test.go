package model

import (
	"errors"
	"testing"
)

// TestNewSearchSession tests session construction.
func TestNewSearchSession(t *testing.T) {
	t.Parallel()

	s := NewSearchSession("instagram", "5511987654321")

	if s.ID == "" {
		t.Error("expected session ID")
	}
	if s.State != StateInit {
		t.Errorf("expected init, got %s", s.State)
	}
	if s.Platform != "instagram" {
		t.Errorf("expected platform instagram, got %q", s.Platform)
	}
	if s.StartedAt.IsZero() {
		t.Error("expected start time")
	}

	other := NewSearchSession("instagram", "5511987654321")
	if other.ID == s.ID {
		t.Error("expected unique session IDs")
	}
}

// TestSearchSessionTransition tests the state machine.
func TestSearchSessionTransition(t *testing.T) {
	t.Parallel()

	t.Run("normal path reaches done", func(t *testing.T) {
		t.Parallel()

		s := NewSearchSession("tiktok", "5511987654321")
		path := []SessionState{
			StateGenerating,
			StateReady,
			StateProbing, StateClassifying, StateExtracting,
			StateProbing, StateClassifying, StateSkipping,
			StateAggregated,
			StateDone,
		}
		for _, next := range path {
			if err := s.Transition(next); err != nil {
				t.Fatalf("transition to %s: %v", next, err)
			}
		}
		if s.FinishedAt.IsZero() {
			t.Error("expected finish time on terminal state")
		}
		if got := len(s.Transitions()); got != len(path)+1 {
			t.Errorf("expected %d transitions, got %d", len(path)+1, got)
		}
	})

	t.Run("retry loops from classifying to probing", func(t *testing.T) {
		t.Parallel()

		s := NewSearchSession("x", "5511987654321")
		for _, next := range []SessionState{StateGenerating, StateProbing, StateClassifying, StateProbing} {
			if err := s.Transition(next); err != nil {
				t.Fatalf("transition to %s: %v", next, err)
			}
		}
	})

	t.Run("skipping generation is rejected", func(t *testing.T) {
		t.Parallel()

		s := NewSearchSession("x", "5511987654321")
		err := s.Transition(StateProbing)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if s.State != StateInit {
			t.Errorf("expected state unchanged, got %s", s.State)
		}
	})

	t.Run("ready before generation is rejected", func(t *testing.T) {
		t.Parallel()

		s := NewSearchSession("whatsapp", "5511987654321")
		if err := s.Transition(StateReady); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("terminal state accepts nothing", func(t *testing.T) {
		t.Parallel()

		s := NewSearchSession("x", "5511987654321")
		s.Abort(errors.New("boom"))
		if err := s.Transition(StateGenerating); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

// TestSearchSessionAbort tests that abort records the error once.
func TestSearchSessionAbort(t *testing.T) {
	t.Parallel()

	s := NewSearchSession("whatsapp", "5511987654321")
	first := &SessionUnavailableError{Provider: "browser"}
	s.Abort(first)
	s.Abort(errors.New("second"))

	if s.State != StateAborted {
		t.Errorf("expected aborted, got %s", s.State)
	}
	if !errors.Is(s.Err, ErrSessionUnavailable) {
		t.Errorf("expected first error kept, got %v", s.Err)
	}
	if s.ErrorMessage != first.Error() {
		t.Errorf("expected message %q, got %q", first.Error(), s.ErrorMessage)
	}
}

// TestSessionStateText tests state name round trip.
func TestSessionStateText(t *testing.T) {
	t.Parallel()

	for state := StateInit; state <= StateAborted; state++ {
		text, err := state.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", state, err)
		}
		var decoded SessionState
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if decoded != state {
			t.Errorf("expected %s, got %s", state, decoded)
		}
	}
}
