package domain

import (
	"context"
	"iter"
)

// LinkStore is the driven port for the persistent set of discovered links.
type LinkStore interface {
	// Add inserts link unless its hash is already known.
	Add(ctx context.Context, link DiscussionLink) (inserted bool, err error)
	// Pending lazily yields links that are not done and still within the retry budget.
	Pending(ctx context.Context, maxAttempts int) iter.Seq2[DiscussionLink, error]
	Count(ctx context.Context) (int, error)
}

// Journal is the driven port for per-hash crawl status.
type Journal interface {
	Status(ctx context.Context, hash string) (*JournalEntry, error)
	Claim(ctx context.Context, hash string, maxAttempts int) error
	Complete(ctx context.Context, hash string, comments int) error
	Fail(ctx context.Context, hash string, reason string) error
	Release(ctx context.Context, hash string) error
	RecoverStale(ctx context.Context, maxAttempts int) (int64, error)
	Exhausted(ctx context.Context, maxAttempts int) ([]JournalEntry, error)
	Counts(ctx context.Context) (map[JournalStatus]int, error)
}

// CommentStore is a key-value store of comment records keyed by link hash.
type CommentStore interface {
	Put(ctx context.Context, hash string, records []CommentRecord) error
	Get(ctx context.Context, hash string) ([]CommentRecord, error)
	Exists(ctx context.Context, hash string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Browser hands out isolated pages.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
}

// Page is the subset of browser-tab operations the crawler needs. Selectors
// are CSS; a non-empty text additionally requires the element's text content
// to contain it.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Count(ctx context.Context, selector, text string) (int, error)
	// ClickFirst scrolls the first match into view, clicks it and waits for
	// the page to settle. It returns ErrNoElement when nothing matches.
	ClickFirst(ctx context.Context, selector, text string) error
	ScrollHeight(ctx context.Context) (int, error)
	ScrollToBottom(ctx context.Context) error
	Attributes(ctx context.Context, selector, attr string) ([]string, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}
