// Package extract turns a stabilized page snapshot into comment records.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

// Config names the elements of a comment tree.
type Config struct {
	RegionSelector  string
	CommentSelector string
	AuthorAttr      string
	BodySelector    string
	TimeSelector    string
	TimeAttr        string
}

// DefaultConfig returns selectors for the forum's comment markup.
func DefaultConfig() Config {
	return Config{
		RegionSelector:  "shreddit-comment-tree",
		CommentSelector: "shreddit-comment",
		AuthorAttr:      "author",
		BodySelector:    `div[slot="comment"]`,
		TimeSelector:    "faceplate-timeago",
		TimeAttr:        "ts",
	}
}

// Extractor reads comment records from page snapshots.
type Extractor struct {
	cfg Config
}

// New returns an extractor; empty fields fall back to DefaultConfig.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.RegionSelector == "" {
		cfg.RegionSelector = def.RegionSelector
	}
	if cfg.CommentSelector == "" {
		cfg.CommentSelector = def.CommentSelector
	}
	if cfg.AuthorAttr == "" {
		cfg.AuthorAttr = def.AuthorAttr
	}
	if cfg.BodySelector == "" {
		cfg.BodySelector = def.BodySelector
	}
	if cfg.TimeSelector == "" {
		cfg.TimeSelector = def.TimeSelector
	}
	if cfg.TimeAttr == "" {
		cfg.TimeAttr = def.TimeAttr
	}
	return &Extractor{cfg: cfg}
}

// Extract returns the comments of raw in depth-first pre-order. Comments
// whose text is empty are skipped and take no order slot.
func (e *Extractor) Extract(raw domain.RawPage) ([]domain.CommentRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", raw.URL, err)
	}

	region := doc.Find(e.cfg.RegionSelector).First()
	if region.Length() == 0 {
		region = doc.Selection
	}

	records := []domain.CommentRecord{}
	region.Find(e.cfg.CommentSelector).Each(func(_ int, c *goquery.Selection) {
		text := e.text(c)
		if text == "" {
			return
		}
		records = append(records, domain.CommentRecord{
			Author:    c.AttrOr(e.cfg.AuthorAttr, ""),
			Text:      text,
			Depth:     c.ParentsUntilSelection(region).Filter(e.cfg.CommentSelector).Length(),
			Order:     len(records),
			Timestamp: e.own(c, e.cfg.TimeSelector).First().AttrOr(e.cfg.TimeAttr, ""),
		})
	})
	return records, nil
}

// own returns the descendants of comment c matching sel that belong to c
// itself rather than to a nested reply.
func (e *Extractor) own(c *goquery.Selection, sel string) *goquery.Selection {
	node := c.Get(0)
	return c.Find(sel).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return ownerOf(s, e.cfg.CommentSelector) == node
	})
}

func ownerOf(s *goquery.Selection, commentSel string) *html.Node {
	owner := s.Parent().Closest(commentSel)
	if owner.Length() == 0 {
		return nil
	}
	return owner.Get(0)
}

func (e *Extractor) text(c *goquery.Selection) string {
	var parts []string
	e.own(c, e.cfg.BodySelector).Each(func(_ int, body *goquery.Selection) {
		paragraphs := body.Find("p")
		if paragraphs.Length() == 0 {
			parts = append(parts, body.Text())
			return
		}
		paragraphs.Each(func(_ int, p *goquery.Selection) {
			parts = append(parts, p.Text())
		})
	})
	return clean(strings.Join(parts, " "))
}

// clean applies NFC normalization and collapses whitespace runs to one space.
func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
