package constants

// Status is the canonical processing status for a receipt record.
type Status string

// Stable values (store these exact strings in the record store).
const (
	StatusUnprocessed Status = "UNPROCESSED"  // listed but not yet processed
	StatusProcessed   Status = "PROCESSED"    // extracted and persisted
	StatusError       Status = "ERROR"        // terminal failure
	StatusNeedsReview Status = "NEEDS_REVIEW" // persisted but below confidence threshold
)

// SessionStatus is the status of a single processing attempt.
type SessionStatus string

const (
	SessionRunning SessionStatus = "RUNNING"
	SessionSuccess SessionStatus = "SUCCESS"
	SessionFailed  SessionStatus = "FAILED"
)
