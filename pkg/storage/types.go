package storage

import "time"

// Event kinds recorded in the journal.
const (
	EventCompleted = "completed"
	EventMissed    = "missed"
	EventReset     = "reset"
	EventArchived  = "archived"
	EventCheat     = "cheat"
)

// Event is one state transition the engine performed. The journal is an
// audit trail only: the chat platform remains the source of truth and the
// engine never reads its own state back from here.
type Event struct {
	OccurredAt  time.Time
	Participant string
	Day         int // 1-based campaign day, 0 when not day-specific
	Kind        string
}
