// Package browsertest provides scripted in-memory implementations of
// domain.Browser and domain.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

// Key identifies a control by selector and text filter.
func Key(selector, text string) string {
	return selector + "|" + text
}

// Control is a clickable element group on a fake page.
type Control struct {
	// Remaining is how many matching elements are left; each click removes one.
	Remaining int

	// Sticky controls always match and never disappear.
	Sticky bool

	// Err is returned by every click.
	Err error
}

// Page is a scripted page. Fields may be set before use; after that the
// page guards its own state.
type Page struct {
	mu sync.Mutex

	NavigateErr error
	HTMLErr     error
	Controls    map[string]*Control
	Body        string

	// Heights are the scroll heights after 0, 1, 2... scrolls; the last repeats.
	Heights []int

	// AttrPages are attribute values revealed after 0, 1, 2... scrolls, cumulatively.
	AttrPages [][]string

	// OnClick runs after a successful click with the page lock held; it may
	// mutate the page's exported fields directly.
	OnClick func(p *Page, key string)

	scrolls   int
	navigated []string
	clicks    []string
	closed    bool
}

var _ domain.Page = (*Page)(nil)

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return p.NavigateErr
}

func (p *Page) Count(ctx context.Context, selector, text string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.Controls[Key(selector, text)]
	switch {
	case c == nil:
		return 0, nil
	case c.Sticky:
		return 1, nil
	default:
		return c.Remaining, nil
	}
}

func (p *Page) ClickFirst(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := Key(selector, text)
	c := p.Controls[key]
	if c == nil || (!c.Sticky && c.Remaining <= 0) {
		return domain.ErrNoElement
	}
	if c.Err != nil {
		return c.Err
	}
	if !c.Sticky {
		c.Remaining--
	}
	p.clicks = append(p.clicks, key)
	if p.OnClick != nil {
		p.OnClick(p, key)
	}
	return nil
}

func (p *Page) ScrollHeight(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Heights) == 0 {
		return 0, nil
	}
	return p.Heights[min(p.scrolls, len(p.Heights)-1)], nil
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls++
	return nil
}

func (p *Page) Attributes(ctx context.Context, selector, attr string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var values []string
	for i := 0; i < len(p.AttrPages) && i <= p.scrolls; i++ {
		values = append(values, p.AttrPages[i]...)
	}
	return values, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.HTMLErr != nil {
		return "", p.HTMLErr
	}
	return p.Body, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Clicks returns the control keys clicked so far.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Scrolls returns how many times the page was scrolled.
func (p *Page) Scrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// Navigated returns the URLs passed to Navigate.
func (p *Page) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Browser routes each tab to a fresh page built for the URL it navigates to.
type Browser struct {
	mu sync.Mutex

	// Sites maps a URL to a constructor for its page.
	Sites      map[string]func() *Page
	NewPageErr error

	opened int
	tabs   []*Tab
}

var _ domain.Browser = (*Browser)(nil)

func (b *Browser) NewPage(ctx context.Context) (domain.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	b.opened++
	tab := &Tab{browser: b}
	b.tabs = append(b.tabs, tab)
	return tab, nil
}

// AddSite registers the page constructor for url.
func (b *Browser) AddSite(url string, page func() *Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Sites == nil {
		b.Sites = make(map[string]func() *Page)
	}
	b.Sites[url] = page
}

// Opened returns how many tabs were handed out.
func (b *Browser) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// Open returns how many tabs are not yet closed.
func (b *Browser) Open() int {
	b.mu.Lock()
	tabs := append([]*Tab(nil), b.tabs...)
	b.mu.Unlock()
	n := 0
	for _, t := range tabs {
		if !t.isClosed() {
			n++
		}
	}
	return n
}

var errNotNavigated = errors.New("tab has not navigated")

// Tab is a browser tab that becomes a site page on Navigate.
type Tab struct {
	browser *Browser

	mu     sync.Mutex
	page   *Page
	closed bool
}

func (t *Tab) current() (*Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, domain.ErrSessionClosed
	}
	if t.page == nil {
		return nil, errNotNavigated
	}
	return t.page, nil
}

func (t *Tab) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.browser.mu.Lock()
	site := t.browser.Sites[url]
	t.browser.mu.Unlock()
	if site == nil {
		return fmt.Errorf("navigate %s: no such site", url)
	}
	page := site()
	t.mu.Lock()
	t.page = page
	t.mu.Unlock()
	return page.Navigate(ctx, url)
}

func (t *Tab) Count(ctx context.Context, selector, text string) (int, error) {
	p, err := t.current()
	if err != nil {
		return 0, err
	}
	return p.Count(ctx, selector, text)
}

func (t *Tab) ClickFirst(ctx context.Context, selector, text string) error {
	p, err := t.current()
	if err != nil {
		return err
	}
	return p.ClickFirst(ctx, selector, text)
}

func (t *Tab) ScrollHeight(ctx context.Context) (int, error) {
	p, err := t.current()
	if err != nil {
		return 0, err
	}
	return p.ScrollHeight(ctx)
}

func (t *Tab) ScrollToBottom(ctx context.Context) error {
	p, err := t.current()
	if err != nil {
		return err
	}
	return p.ScrollToBottom(ctx)
}

func (t *Tab) Attributes(ctx context.Context, selector, attr string) ([]string, error) {
	p, err := t.current()
	if err != nil {
		return nil, err
	}
	return p.Attributes(ctx, selector, attr)
}

func (t *Tab) HTML(ctx context.Context) (string, error) {
	p, err := t.current()
	if err != nil {
		return "", err
	}
	return p.HTML(ctx)
}

func (t *Tab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
