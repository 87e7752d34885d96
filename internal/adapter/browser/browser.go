// Package browser implements domain.Browser over a Chrome instance driven
// through the DevTools protocol with go-rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
)

// Config controls how Chrome is started and how long page operations wait.
type Config struct {
	Headless bool
	// Bin is the Chrome binary; empty lets the launcher find or download one.
	Bin string
	// ControlURL connects to an already running Chrome instead of launching one.
	ControlURL string

	SettleTimeout time.Duration
	SettleJitter  time.Duration
	ActionTimeout time.Duration
}

// Browser is one shared Chrome connection. Each page lives in its own
// incognito context.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
}

var _ domain.Browser = (*Browser)(nil)

// Launch starts (or connects to) Chrome.
func Launch(ctx context.Context, cfg Config, log logger.Logger) (*Browser, error) {
	b := &Browser{cfg: cfg}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		b.launcher = launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			b.launcher = b.launcher.Bin(cfg.Bin)
		}
		url, err := b.launcher.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	b.browser = rod.New().ControlURL(controlURL)
	if err := b.browser.Connect(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	log.Info("browser connected", logger.Bool("headless", cfg.Headless))
	return b, nil
}

// NewPage opens a blank page in a fresh incognito context. The page is not
// bound to ctx; each operation takes its own.
func (b *Browser) NewPage(ctx context.Context) (domain.Page, error) {
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		incognito.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &Page{page: page, incognito: incognito, cfg: b.cfg}, nil
}

// Close disconnects and stops a launched Chrome.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.cleanup()
	return err
}

func (b *Browser) cleanup() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}

// Page is one tab.
type Page struct {
	page      *rod.Page
	incognito *rod.Browser
	cfg       Config
}

var _ domain.Page = (*Page)(nil)

const (
	countJS  = `(sel, text) => Array.from(document.querySelectorAll(sel)).filter(e => !text || (e.textContent || "").includes(text)).length`
	firstJS  = `(sel, text) => Array.from(document.querySelectorAll(sel)).find(e => !text || (e.textContent || "").includes(text)) || null`
	attrsJS  = `(sel, attr) => Array.from(document.querySelectorAll(sel)).map(e => e.getAttribute(attr)).filter(v => v !== null)`
	heightJS = `() => document.documentElement.scrollHeight`
	bottomJS = `() => window.scrollTo(0, document.documentElement.scrollHeight)`
)

// op scopes the page to ctx, bounded by the action timeout.
func (p *Page) op(ctx context.Context) (*rod.Page, context.CancelFunc) {
	if p.cfg.ActionTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.ActionTimeout)
		return p.page.Context(ctx), cancel
	}
	ctx, cancel := context.WithCancel(ctx)
	return p.page.Context(ctx), cancel
}

// Navigate loads url and waits for the load event. The caller bounds it.
func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	if err := page.WaitLoad(); err != nil {
		return err
	}
	return p.settle(ctx)
}

func (p *Page) Count(ctx context.Context, selector, text string) (int, error) {
	page, cancel := p.op(ctx)
	defer cancel()
	res, err := page.Eval(countJS, selector, text)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *Page) ClickFirst(ctx context.Context, selector, text string) error {
	page, cancel := p.op(ctx)
	defer cancel()

	el, err := page.Sleeper(rod.NotFoundSleeper).ElementByJS(rod.Eval(firstJS, selector, text))
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return domain.ErrNoElement
		}
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	return p.settle(ctx)
}

func (p *Page) ScrollHeight(ctx context.Context) (int, error) {
	page, cancel := p.op(ctx)
	defer cancel()
	res, err := page.Eval(heightJS)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	page, cancel := p.op(ctx)
	defer cancel()
	if _, err := page.Eval(bottomJS); err != nil {
		return err
	}
	return p.settle(ctx)
}

func (p *Page) Attributes(ctx context.Context, selector, attr string) ([]string, error) {
	page, cancel := p.op(ctx)
	defer cancel()
	res, err := page.Eval(attrsJS, selector, attr)
	if err != nil {
		return nil, err
	}
	var values []string
	for _, v := range res.Value.Arr() {
		values = append(values, v.Str())
	}
	return values, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	page, cancel := p.op(ctx)
	defer cancel()
	return page.HTML()
}

// Close closes the tab and disposes of its incognito context.
func (p *Page) Close() error {
	err := p.page.Close()
	if cerr := p.incognito.Close(); err == nil {
		err = cerr
	}
	return err
}

// settle waits for the page to go idle, then a random extra delay up to
// the configured jitter.
func (p *Page) settle(ctx context.Context) error {
	if p.cfg.SettleTimeout > 0 {
		// An idle timeout only means the page is still busy; carry on.
		_ = p.page.Context(ctx).WaitIdle(p.cfg.SettleTimeout)
	}
	if p.cfg.SettleJitter <= 0 {
		return nil
	}
	select {
	case <-time.After(rand.N(p.cfg.SettleJitter)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
