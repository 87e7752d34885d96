// Package session drives one browser page through the interaction plugins
// until the page stops changing.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
)

// Options bounds a session.
type Options struct {
	NavigationTimeout time.Duration
	// PluginTimeout bounds one Detect or Act call; zero means unbounded.
	PluginTimeout     time.Duration
	MaxRounds         int
	MaxPluginFailures int
}

// Factory opens sessions over pages of one browser.
type Factory struct {
	browser domain.Browser
	plugins []domain.Plugin
	opts    Options
	log     logger.Logger
}

// NewFactory returns a factory running plugins in the given order.
func NewFactory(browser domain.Browser, plugins []domain.Plugin, opts Options, log logger.Logger) *Factory {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 200
	}
	if opts.MaxPluginFailures <= 0 {
		opts.MaxPluginFailures = 3
	}
	return &Factory{browser: browser, plugins: plugins, opts: opts, log: log}
}

// Open acquires a page. The caller must Close the session.
func (f *Factory) Open(ctx context.Context) (*Session, error) {
	page, err := f.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &Session{page: page, plugins: f.plugins, opts: f.opts, log: f.log}, nil
}

// Session owns one page for the crawl of one link.
type Session struct {
	page    domain.Page
	plugins []domain.Plugin
	opts    Options
	log     logger.Logger

	mu     sync.Mutex
	closed bool
}

// Run navigates to link and runs the plugin loop to a fixed point.
//
// Cancelling ctx is observed only between plugin calls; calls already in
// flight run to completion on a detached context. An Unstable error still
// returns the best-effort snapshot.
func (s *Session) Run(ctx context.Context, link domain.DiscussionLink, attempt int) (domain.RawPage, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.RawPage{}, domain.ErrSessionClosed
	}

	work := context.WithoutCancel(ctx)
	raw := domain.RawPage{URL: link.URL}

	navCtx, cancel := s.bound(work, s.opts.NavigationTimeout)
	err := s.page.Navigate(navCtx, link.URL)
	cancel()
	if err != nil {
		return raw, domain.NewSessionError(domain.KindNavigationFailed, err)
	}

	pc := domain.NewPluginContext(s.page, attempt)
	rounds, actions, err := s.stabilize(ctx, work, pc)
	raw.Rounds = rounds
	raw.Actions = actions
	if err != nil && domain.KindOf(err) != domain.KindUnstable {
		return raw, err
	}

	snapCtx, cancel := s.bound(work, s.opts.NavigationTimeout)
	html, snapErr := s.page.HTML(snapCtx)
	cancel()
	if snapErr != nil {
		snapErr = fmt.Errorf("snapshot: %w", snapErr)
		var unstable *domain.SessionError
		if errors.As(err, &unstable) {
			return raw, domain.NewSessionError(domain.KindUnstable, fmt.Errorf("%w; %w", unstable.Err, snapErr))
		}
		return raw, domain.NewSessionError(domain.KindNavigationFailed, snapErr)
	}
	raw.HTML = html
	return raw, err
}

// stabilize scans the plugins top to bottom until a scan detects nothing.
// An Acted outcome restarts the scan; every scan is one round.
func (s *Session) stabilize(ctx, work context.Context, pc *domain.PluginContext) (rounds, actions int, err error) {
	failures := make(map[string]int)

	for round := 1; ; round++ {
		if round > s.opts.MaxRounds {
			return round - 1, actions, domain.NewSessionError(domain.KindUnstable,
				fmt.Errorf("no fixed point after %d rounds", s.opts.MaxRounds))
		}
		pc.Round = round

		detected := false
		for _, p := range s.plugins {
			if failures[p.Name()] >= s.opts.MaxPluginFailures {
				continue
			}
			if ctx.Err() != nil {
				return round, actions, domain.NewSessionError(domain.KindInterrupted, ctx.Err())
			}

			ok, derr := s.detect(work, p, pc)
			if derr != nil {
				s.recordFailure(failures, p, derr.Error())
				continue
			}
			if !ok {
				continue
			}
			detected = true

			out := s.act(work, p, pc)
			switch out.Kind {
			case domain.Acted:
				actions++
				s.log.Debug("plugin acted",
					logger.String("plugin", p.Name()),
					logger.Int("round", round),
				)
			case domain.Failed:
				s.recordFailure(failures, p, out.Reason)
			}

			if pc.Terminated() {
				return round, actions, nil
			}
			if out.Kind == domain.Acted {
				break
			}
		}

		if !detected {
			return round, actions, nil
		}
	}
}

func (s *Session) recordFailure(failures map[string]int, p domain.Plugin, reason string) {
	failures[p.Name()]++
	s.log.Warn("plugin failed",
		logger.String("plugin", p.Name()),
		logger.String("reason", reason),
		logger.Int("failures", failures[p.Name()]),
	)
	if failures[p.Name()] == s.opts.MaxPluginFailures {
		s.log.Warn("plugin disabled for session", logger.String("plugin", p.Name()))
	}
}

func (s *Session) detect(ctx context.Context, p domain.Plugin, pc *domain.PluginContext) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked in detect: %v", p.Name(), r)
		}
	}()
	ctx, cancel := s.bound(ctx, s.opts.PluginTimeout)
	defer cancel()
	return p.Detect(ctx, pc), nil
}

func (s *Session) act(ctx context.Context, p domain.Plugin, pc *domain.PluginContext) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.FailedOutcome(fmt.Errorf("plugin %s panicked: %v", p.Name(), r))
		}
	}()
	ctx, cancel := s.bound(ctx, s.opts.PluginTimeout)
	defer cancel()
	return p.Act(ctx, pc)
}

func (s *Session) bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Close releases the page. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.page.Close()
}
