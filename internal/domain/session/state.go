package session

// State represents a stage in a document review session
type State string

const (
	StateIdle           State = "IDLE"
	StateUploading      State = "UPLOADING"
	StateExtracting     State = "EXTRACTING"
	StateAnalyzing      State = "ANALYZING"
	StateReadyForReview State = "READY_FOR_REVIEW"
	StateSaving         State = "SAVING"
	StateFiled          State = "FILED"
	StateDiscarded      State = "DISCARDED"
	StateFailed         State = "FAILED"
)

var validStates = map[State]bool{
	StateIdle:           true,
	StateUploading:      true,
	StateExtracting:     true,
	StateAnalyzing:      true,
	StateReadyForReview: true,
	StateSaving:         true,
	StateFiled:          true,
	StateDiscarded:      true,
	StateFailed:         true,
}

var terminalStates = map[State]bool{
	StateFiled:     true,
	StateDiscarded: true,
}

// IsTerminal returns true if no further transitions are allowed from s
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if s is a known session state
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
