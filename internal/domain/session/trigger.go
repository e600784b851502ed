package session

// Trigger causes a session state transition
type Trigger string

const (
	// TriggerUpload starts a new upload. Allowed from any non-terminal
	// state; firing it from a mid-flight state discards derived state.
	TriggerUpload Trigger = "UPLOAD"
	// TriggerExtract moves to text extraction after the file is stored
	TriggerExtract Trigger = "EXTRACT"
	// TriggerAnalyze moves to AI analysis after text extraction
	TriggerAnalyze Trigger = "ANALYZE"
	// TriggerAnalyzed completes analysis and enters review
	TriggerAnalyzed Trigger = "ANALYZED"
	// TriggerSave begins filing the reviewed document
	TriggerSave Trigger = "SAVE"
	// TriggerFiled completes a successful save
	TriggerFiled Trigger = "FILED"
	// TriggerDiscard abandons the session
	TriggerDiscard Trigger = "DISCARD"
	// TriggerFail records a stage failure
	TriggerFail Trigger = "FAIL"
	// TriggerRetry returns a failed session to idle for a full retry
	TriggerRetry Trigger = "RETRY"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
