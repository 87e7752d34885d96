// Package discovery collects discussion links from the forum listing.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
)

// Config controls one discovery pass.
type Config struct {
	TargetURL         string
	LinkSelector      string
	MaxLinks          int
	ScrollRetries     int
	NavigationTimeout time.Duration
}

// Result counts the links seen on the listing and those new to the store.
type Result struct {
	Seen    int
	Added   int
	Invalid int
}

// Crawler scrolls a listing page and submits every thread link it finds.
type Crawler struct {
	browser domain.Browser
	links   *domain.LinkService
	cfg     Config
	log     logger.Logger
}

// New creates a discovery crawler.
func New(browser domain.Browser, links *domain.LinkService, cfg Config, log logger.Logger) *Crawler {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	if cfg.ScrollRetries <= 0 {
		cfg.ScrollRetries = 5
	}
	return &Crawler{browser: browser, links: links, cfg: cfg, log: log}
}

// Run scrolls the listing until MaxLinks links were seen or the page stops
// growing for ScrollRetries consecutive scrolls.
func (c *Crawler) Run(ctx context.Context) (Result, error) {
	var res Result
	base, err := url.Parse(c.cfg.TargetURL)
	if err != nil {
		return res, fmt.Errorf("target url: %w", err)
	}

	page, err := c.browser.NewPage(ctx)
	if err != nil {
		return res, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	err = page.Navigate(navCtx, base.String())
	cancel()
	if err != nil {
		return res, fmt.Errorf("navigate %s: %w", base, err)
	}

	seen := make(map[string]bool)
	stale := 0
	for ctx.Err() == nil {
		hrefs, err := page.Attributes(ctx, c.cfg.LinkSelector, "href")
		if err != nil {
			return res, fmt.Errorf("collect links: %w", err)
		}
		for _, href := range hrefs {
			if seen[href] {
				continue
			}
			seen[href] = true
			if err := c.submit(ctx, base, href, &res); err != nil {
				return res, err
			}
			if c.cfg.MaxLinks > 0 && res.Seen >= c.cfg.MaxLinks {
				c.log.Info("link limit reached", logger.Int("max_links", c.cfg.MaxLinks))
				return res, nil
			}
		}

		before, err := page.ScrollHeight(ctx)
		if err != nil {
			return res, fmt.Errorf("scroll height: %w", err)
		}
		if err := page.ScrollToBottom(ctx); err != nil {
			return res, fmt.Errorf("scroll: %w", err)
		}
		after, err := page.ScrollHeight(ctx)
		if err != nil {
			return res, fmt.Errorf("scroll height: %w", err)
		}
		if after > before {
			stale = 0
			continue
		}
		stale++
		c.log.Debug("listing did not grow", logger.Int("retry", stale))
		if stale >= c.cfg.ScrollRetries {
			break
		}
	}

	c.log.Info("discovery finished",
		logger.Int("seen", res.Seen),
		logger.Int("added", res.Added),
		logger.Int("invalid", res.Invalid),
	)
	return res, ctx.Err()
}

func (c *Crawler) submit(ctx context.Context, base *url.URL, href string, res *Result) error {
	ref, err := url.Parse(href)
	if err != nil {
		res.Invalid++
		c.log.Warn("skipping unparsable href", logger.String("href", href))
		return nil
	}
	link, inserted, err := c.links.Submit(ctx, base.ResolveReference(ref).String())
	if errors.Is(err, domain.ErrInvalidURL) {
		res.Invalid++
		c.log.Warn("skipping invalid link", logger.String("href", href))
		return nil
	}
	if err != nil {
		return fmt.Errorf("store link: %w", err)
	}
	res.Seen++
	if inserted {
		res.Added++
		c.log.Debug("link discovered", logger.String("hash", link.Hash), logger.String("url", link.URL))
	}
	return nil
}
