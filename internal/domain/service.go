package domain

import (
	"context"
	"iter"
	"time"
)

// LinkService validates and records discovered links.
type LinkService struct {
	store LinkStore
	now   func() time.Time
}

// NewLinkService creates a new LinkService.
func NewLinkService(store LinkStore) *LinkService {
	return &LinkService{store: store, now: time.Now}
}

// Submit normalizes rawURL and adds it to the store. A duplicate returns the
// link with inserted=false and no error.
func (s *LinkService) Submit(ctx context.Context, rawURL string) (DiscussionLink, bool, error) {
	link, err := NewDiscussionLink(rawURL, s.now())
	if err != nil {
		return DiscussionLink{}, false, err
	}
	inserted, err := s.store.Add(ctx, link)
	if err != nil {
		return DiscussionLink{}, false, err
	}
	return link, inserted, nil
}

// Pending yields links still to crawl.
func (s *LinkService) Pending(ctx context.Context, maxAttempts int) iter.Seq2[DiscussionLink, error] {
	return s.store.Pending(ctx, maxAttempts)
}

// Count returns the number of known links.
func (s *LinkService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}
