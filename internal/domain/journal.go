package domain

import "time"

// JournalStatus represents the crawl state of a link.
type JournalStatus string

const (
	StatusPending    JournalStatus = "pending"
	StatusInProgress JournalStatus = "in_progress"
	StatusDone       JournalStatus = "done"
	StatusFailed     JournalStatus = "failed"
)

// JournalEntry is the persisted crawl status of one link hash.
type JournalEntry struct {
	Hash      string
	URL       string
	Status    JournalStatus
	Attempts  int
	Reason    string
	Comments  int
	UpdatedAt time.Time
}

// CanRetry returns true if the link may be claimed again.
func (e *JournalEntry) CanRetry(maxAttempts int) bool {
	switch e.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return e.Attempts < maxAttempts
	default:
		return false
	}
}

// Exhausted returns true if the link failed and its retry budget is spent.
func (e *JournalEntry) Exhausted(maxAttempts int) bool {
	return e.Status == StatusFailed && e.Attempts >= maxAttempts
}
