package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when a trigger is not permitted in the
// current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// Machine tracks the state of one review session and validates
// transitions. It is safe for concurrent use.
type Machine struct {
	mu          sync.RWMutex
	current     State
	transitions map[State]map[Trigger]State
}

// NewMachine creates a session machine in the idle state with the full
// review lifecycle configured:
//
//	Idle → Uploading → Extracting → Analyzing → ReadyForReview
//	ReadyForReview → Saving → Filed | Failed
//	ReadyForReview → Discarded
//	Failed → Idle (retry)
//
// A new upload is permitted from every non-terminal state; pipeline
// stages may fail into Failed.
func NewMachine() *Machine {
	m := &Machine{
		current:     StateIdle,
		transitions: make(map[State]map[Trigger]State),
	}

	m.permit(StateIdle, TriggerUpload, StateUploading)

	m.permit(StateUploading, TriggerExtract, StateExtracting)
	m.permit(StateUploading, TriggerFail, StateFailed)
	m.permit(StateUploading, TriggerUpload, StateUploading)

	m.permit(StateExtracting, TriggerAnalyze, StateAnalyzing)
	m.permit(StateExtracting, TriggerFail, StateFailed)
	m.permit(StateExtracting, TriggerUpload, StateUploading)

	m.permit(StateAnalyzing, TriggerAnalyzed, StateReadyForReview)
	m.permit(StateAnalyzing, TriggerFail, StateFailed)
	m.permit(StateAnalyzing, TriggerUpload, StateUploading)

	m.permit(StateReadyForReview, TriggerSave, StateSaving)
	m.permit(StateReadyForReview, TriggerDiscard, StateDiscarded)
	m.permit(StateReadyForReview, TriggerUpload, StateUploading)

	m.permit(StateSaving, TriggerFiled, StateFiled)
	m.permit(StateSaving, TriggerFail, StateFailed)

	m.permit(StateFailed, TriggerRetry, StateIdle)
	m.permit(StateFailed, TriggerUpload, StateUploading)

	return m
}

func (m *Machine) permit(from State, trigger Trigger, to State) {
	if !from.IsValid() || !to.IsValid() {
		panic(fmt.Sprintf("invalid transition %s -[%s]-> %s", from, trigger, to))
	}
	if m.transitions[from] == nil {
		m.transitions[from] = make(map[Trigger]State)
	}
	m.transitions[from][trigger] = to
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CanFire returns true if the trigger is permitted in the current state
func (m *Machine) CanFire(trigger Trigger) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transitions[m.current][trigger]
	return ok
}

// Fire executes the trigger, transitioning to the new state if permitted
func (m *Machine) Fire(trigger Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, ok := m.transitions[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}

// PermittedTriggers returns all triggers that can fire in the current state
func (m *Machine) PermittedTriggers() []Trigger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	triggers := make([]Trigger, 0, len(m.transitions[m.current]))
	for trigger := range m.transitions[m.current] {
		triggers = append(triggers, trigger)
	}
	return triggers
}
