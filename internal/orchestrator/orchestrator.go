// Package orchestrator drives pending links through page sessions,
// extraction and storage with a bounded worker pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
	"github.com/jcfangc/yahoo-crawler/internal/session"
)

// Extractor turns a page snapshot into comment records.
type Extractor interface {
	Extract(raw domain.RawPage) ([]domain.CommentRecord, error)
}

// Options configures a run.
type Options struct {
	Workers     int
	MaxAttempts int
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Links     domain.LinkStore
	Journal   domain.Journal
	Comments  domain.CommentStore
	Sessions  *session.Factory
	Extractor Extractor
}

// Orchestrator crawls pending links.
type Orchestrator struct {
	deps Deps
	opts Options
	log  logger.Logger
}

// New creates an orchestrator.
func New(deps Deps, opts Options, log logger.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Orchestrator{deps: deps, opts: opts, log: log}
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeEmpty
	outcomeFailed
	outcomeSkipped
	outcomeInterrupted
)

// Run crawls every pending link once. Per-link failures are recorded in the
// journal and the summary; only a journal or listing failure aborts the run.
// Cancelling ctx stops new work and releases links still in flight.
func (o *Orchestrator) Run(ctx context.Context) (domain.Summary, error) {
	summary := domain.NewSummary()
	log := o.log.With(logger.String("run_id", uuid.NewString()))
	start := time.Now()

	recovered, err := o.deps.Journal.RecoverStale(ctx, o.opts.MaxAttempts)
	if err != nil {
		return summary, fmt.Errorf("recover stale: %w", err)
	}
	if recovered > 0 {
		log.Warn("recovered links left in progress", logger.Int64("count", recovered))
	}

	exhausted, err := o.deps.Journal.Exhausted(ctx, o.opts.MaxAttempts)
	if err != nil {
		return summary, fmt.Errorf("list exhausted: %w", err)
	}
	for _, entry := range exhausted {
		log.Warn("retry budget exhausted",
			logger.String("hash", entry.Hash),
			logger.String("url", entry.URL),
			logger.Int("attempts", entry.Attempts),
			logger.String("reason", entry.Reason),
		)
	}
	summary.Exhausted = len(exhausted)

	log.Info("crawl started", logger.Int("workers", o.opts.Workers))

	g, gctx := errgroup.WithContext(ctx)
	links := make(chan domain.DiscussionLink)
	var mu sync.Mutex

	g.Go(func() error {
		defer close(links)
		for link, err := range o.deps.Links.Pending(gctx, o.opts.MaxAttempts) {
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("list pending: %w", err)
			}
			select {
			case links <- link:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < o.opts.Workers; i++ {
		g.Go(func() error {
			for link := range links {
				if gctx.Err() != nil {
					return nil
				}
				res, reason, err := o.process(gctx, log, link)
				if err != nil {
					return err
				}
				mu.Lock()
				record(&summary, link.Hash, res, reason)
				mu.Unlock()
			}
			return nil
		})
	}

	err = g.Wait()
	log.Info("crawl finished",
		logger.Int("done", summary.Done),
		logger.Int("failed", summary.Failed),
		logger.Int("empty", summary.Empty),
		logger.Int("skipped", summary.Skipped),
		logger.Int("interrupted", summary.Interrupted),
		logger.Duration("elapsed", time.Since(start)),
	)
	if err != nil {
		log.Error("crawl halted", logger.Err(err))
	}
	return summary, err
}

func record(s *domain.Summary, hash string, res outcome, reason string) {
	switch res {
	case outcomeDone:
		s.Done++
	case outcomeEmpty:
		s.Done++
		s.Empty++
	case outcomeFailed:
		s.Failed++
		s.Reasons[hash] = reason
	case outcomeSkipped:
		s.Skipped++
	case outcomeInterrupted:
		s.Interrupted++
	}
}

// process crawls one link. A returned error is fatal for the run; anything
// else is reported through the outcome.
func (o *Orchestrator) process(ctx context.Context, log logger.Logger, link domain.DiscussionLink) (outcome, string, error) {
	log = log.With(logger.String("hash", link.Hash), logger.String("url", link.URL))
	// Journal and storage writes must land even while shutting down.
	persist := context.WithoutCancel(ctx)

	if err := o.deps.Journal.Claim(persist, link.Hash, o.opts.MaxAttempts); err != nil {
		if errors.Is(err, domain.ErrNotClaimable) {
			log.Debug("link not claimable, skipping")
			return outcomeSkipped, "", nil
		}
		return 0, "", fmt.Errorf("claim %s: %w", link.Hash, err)
	}

	// Refresh entry to get the attempt just counted
	entry, err := o.deps.Journal.Status(persist, link.Hash)
	if err != nil {
		return 0, "", fmt.Errorf("status %s: %w", link.Hash, err)
	}
	log = log.With(logger.Int("attempt", entry.Attempts))
	log.Info("crawling link")

	sess, err := o.deps.Sessions.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return o.release(persist, log, link)
		}
		return o.fail(persist, log, link, entry.Attempts, domain.NewSessionError(domain.KindNavigationFailed, err))
	}
	defer sess.Close()

	raw, err := sess.Run(ctx, link, entry.Attempts)
	switch domain.KindOf(err) {
	case domain.KindNone:
		if err != nil {
			return o.fail(persist, log, link, entry.Attempts, err)
		}
	case domain.KindInterrupted:
		return o.release(persist, log, link)
	case domain.KindUnstable:
		o.keepBestEffort(persist, log, link, raw)
		return o.fail(persist, log, link, entry.Attempts, err)
	default:
		return o.fail(persist, log, link, entry.Attempts, err)
	}

	records, err := o.deps.Extractor.Extract(raw)
	if err != nil {
		return o.fail(persist, log, link, entry.Attempts, domain.NewSessionError(domain.KindExtractionEmpty, err))
	}
	res := outcomeDone
	if len(records) == 0 {
		log.Warn("ExtractionEmpty: no comments found", logger.Int("rounds", raw.Rounds))
		res = outcomeEmpty
	}

	if err := o.deps.Comments.Put(persist, link.Hash, records); err != nil {
		return o.fail(persist, log, link, entry.Attempts, domain.NewSessionError(domain.KindStorageFailure, err))
	}
	if err := o.deps.Journal.Complete(persist, link.Hash, len(records)); err != nil {
		return 0, "", fmt.Errorf("complete %s: %w", link.Hash, err)
	}

	log.Info("link done",
		logger.Int("comments", len(records)),
		logger.Int("rounds", raw.Rounds),
		logger.Int("actions", raw.Actions),
	)
	return res, "", nil
}

// keepBestEffort stores whatever the unstable snapshot yields. The link is
// still failed and a later attempt overwrites the records.
func (o *Orchestrator) keepBestEffort(ctx context.Context, log logger.Logger, link domain.DiscussionLink, raw domain.RawPage) {
	if raw.HTML == "" {
		return
	}
	records, err := o.deps.Extractor.Extract(raw)
	if err != nil {
		log.Warn("best-effort extraction failed", logger.Err(err))
		return
	}
	if err := o.deps.Comments.Put(ctx, link.Hash, records); err != nil {
		log.Warn("best-effort store failed", logger.Err(err))
		return
	}
	log.Info("stored best-effort comments", logger.Int("comments", len(records)))
}

func (o *Orchestrator) fail(ctx context.Context, log logger.Logger, link domain.DiscussionLink, attempts int, cause error) (outcome, string, error) {
	reason := cause.Error()
	if err := o.deps.Journal.Fail(ctx, link.Hash, reason); err != nil {
		return 0, "", fmt.Errorf("fail %s: %w", link.Hash, err)
	}
	log.Warn("link failed", logger.String("reason", reason))
	if attempts >= o.opts.MaxAttempts {
		log.Warn("retry budget exhausted", logger.Int("attempts", attempts))
	}
	return outcomeFailed, reason, nil
}

func (o *Orchestrator) release(ctx context.Context, log logger.Logger, link domain.DiscussionLink) (outcome, string, error) {
	if err := o.deps.Journal.Release(ctx, link.Hash); err != nil {
		return 0, "", fmt.Errorf("release %s: %w", link.Hash, err)
	}
	log.Info("link released on shutdown")
	return outcomeInterrupted, "", nil
}

// Watch runs a crawl on every tick until ctx is cancelled, picking up links
// added in the meantime.
func (o *Orchestrator) Watch(ctx context.Context, interval time.Duration) {
	o.log.Info("watch started", logger.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info("watch shutting down")
			return
		case <-ticker.C:
			if _, err := o.Run(ctx); err != nil && ctx.Err() == nil {
				o.log.Error("watch run failed", logger.Err(err))
			}
		}
	}
}
