package sqlite

import (
	"context"
	"database/sql"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS links (
    hash          TEXT PRIMARY KEY,
    url           TEXT NOT NULL,
    discovered_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS journal (
    hash       TEXT PRIMARY KEY REFERENCES links(hash),
    status     TEXT NOT NULL,
    attempts   INTEGER NOT NULL DEFAULT 0,
    reason     TEXT,
    comments   INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_status ON journal(status);
`

const recoveredReason = "Interrupted: recovered after crash"

// pageSize bounds how many pending links are read per query.
const pageSize = 100

// Repository implements domain.LinkStore and domain.Journal using SQLite.
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository, initializing the schema if needed.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers; Pending never holds a cursor
	// open across a yield.
	db.SetMaxOpenConns(1)

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Add inserts a link unless its hash already exists.
func (r *Repository) Add(ctx context.Context, link domain.DiscussionLink) (bool, error) {
	if link.Hash == "" {
		return false, domain.ErrInvalidURL
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO links (hash, url, discovered_at) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO NOTHING`,
		link.Hash, link.URL, link.DiscoveredAt,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Count returns the number of known links.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`).Scan(&n)
	return n, err
}

// Pending yields links in discovery order that are not done, not in progress
// and not past the retry budget. Each call starts from the beginning.
func (r *Repository) Pending(ctx context.Context, maxAttempts int) iter.Seq2[domain.DiscussionLink, error] {
	return func(yield func(domain.DiscussionLink, error) bool) {
		var after int64
		for {
			batch, last, err := r.pendingPage(ctx, after, maxAttempts)
			if err != nil {
				yield(domain.DiscussionLink{}, err)
				return
			}
			for _, link := range batch {
				if !yield(link, nil) {
					return
				}
			}
			if len(batch) < pageSize {
				return
			}
			after = last
		}
	}
}

func (r *Repository) pendingPage(ctx context.Context, after int64, maxAttempts int) ([]domain.DiscussionLink, int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.rowid, l.hash, l.url, l.discovered_at
		 FROM links l LEFT JOIN journal j ON j.hash = l.hash
		 WHERE l.rowid > ?
		   AND (j.hash IS NULL OR j.status = ? OR (j.status = ? AND j.attempts < ?))
		 ORDER BY l.rowid ASC LIMIT ?`,
		after, domain.StatusPending, domain.StatusFailed, maxAttempts, pageSize,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var links []domain.DiscussionLink
	last := after
	for rows.Next() {
		var link domain.DiscussionLink
		if err := rows.Scan(&last, &link.Hash, &link.URL, &link.DiscoveredAt); err != nil {
			return nil, 0, err
		}
		links = append(links, link)
	}
	return links, last, rows.Err()
}

// Status returns the journal entry for hash. Links never claimed report pending.
func (r *Repository) Status(ctx context.Context, hash string) (*domain.JournalEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT l.hash, l.url, l.discovered_at, COALESCE(j.status, ?), COALESCE(j.attempts, 0),
		        COALESCE(j.reason, ''), COALESCE(j.comments, 0), j.updated_at
		 FROM links l LEFT JOIN journal j ON j.hash = l.hash
		 WHERE l.hash = ?`,
		domain.StatusPending, hash,
	)

	var entry domain.JournalEntry
	var status string
	var discoveredAt time.Time
	var updatedAt sql.NullTime
	err := row.Scan(&entry.Hash, &entry.URL, &discoveredAt, &status, &entry.Attempts, &entry.Reason, &entry.Comments, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	entry.Status = domain.JournalStatus(status)
	entry.UpdatedAt = discoveredAt
	if updatedAt.Valid {
		entry.UpdatedAt = updatedAt.Time
	}
	return &entry, nil
}

// Claim atomically moves a claimable link to in_progress and counts the attempt.
func (r *Repository) Claim(ctx context.Context, hash string, maxAttempts int) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO journal (hash, status, attempts, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(hash) DO UPDATE SET
		     status = excluded.status,
		     attempts = journal.attempts + 1,
		     updated_at = excluded.updated_at
		 WHERE journal.status = ? OR (journal.status = ? AND journal.attempts < ?)`,
		hash, domain.StatusInProgress, time.Now(),
		domain.StatusPending, domain.StatusFailed, maxAttempts,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotClaimable
	}
	return nil
}

// Complete marks an in-progress link as done.
func (r *Repository) Complete(ctx context.Context, hash string, comments int) error {
	return r.transition(ctx,
		`UPDATE journal SET status = ?, reason = NULL, comments = ?, updated_at = ?
		 WHERE hash = ? AND status = ?`,
		domain.StatusDone, comments, time.Now(), hash, domain.StatusInProgress,
	)
}

// Fail marks an in-progress link as failed with the reason recorded verbatim.
func (r *Repository) Fail(ctx context.Context, hash string, reason string) error {
	return r.transition(ctx,
		`UPDATE journal SET status = ?, reason = ?, updated_at = ?
		 WHERE hash = ? AND status = ?`,
		domain.StatusFailed, reason, time.Now(), hash, domain.StatusInProgress,
	)
}

// Release returns an in-progress link to pending without charging the attempt.
func (r *Repository) Release(ctx context.Context, hash string) error {
	return r.transition(ctx,
		`UPDATE journal SET status = ?, attempts = MAX(attempts - 1, 0), reason = 'Interrupted', updated_at = ?
		 WHERE hash = ? AND status = ?`,
		domain.StatusPending, time.Now(), hash, domain.StatusInProgress,
	)
}

func (r *Repository) transition(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotInProgress
	}
	return nil
}

// RecoverStale resolves links left in_progress by a crash: back to pending
// while budget remains, otherwise terminally failed.
func (r *Repository) RecoverStale(ctx context.Context, maxAttempts int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE journal
		 SET status = CASE WHEN attempts < ? THEN ? ELSE ? END,
		     reason = ?, updated_at = ?
		 WHERE status = ?`,
		maxAttempts, domain.StatusPending, domain.StatusFailed,
		recoveredReason, time.Now(), domain.StatusInProgress,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Exhausted lists failed links whose retry budget is spent.
func (r *Repository) Exhausted(ctx context.Context, maxAttempts int) ([]domain.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT j.hash, l.url, j.status, j.attempts, COALESCE(j.reason, ''), j.comments, j.updated_at
		 FROM journal j JOIN links l ON l.hash = j.hash
		 WHERE j.status = ? AND j.attempts >= ?
		 ORDER BY j.updated_at ASC`,
		domain.StatusFailed, maxAttempts,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Counts returns the number of links per status; unclaimed links count as pending.
func (r *Repository) Counts(ctx context.Context) (map[domain.JournalStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT COALESCE(j.status, ?), COUNT(*)
		 FROM links l LEFT JOIN journal j ON j.hash = l.hash
		 GROUP BY 1`,
		domain.StatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.JournalStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.JournalStatus(status)] += n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.JournalEntry, error) {
	var entry domain.JournalEntry
	var status string
	err := row.Scan(&entry.Hash, &entry.URL, &status, &entry.Attempts, &entry.Reason, &entry.Comments, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	entry.Status = domain.JournalStatus(status)
	return &entry, nil
}
