package plugin

import (
	"context"
	"time"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

// Scroll scrolls to the bottom whenever the document grew since its last scroll.
type Scroll struct {
	name string
}

// NewScroll returns a scroll plugin.
func NewScroll(name string) *Scroll {
	return &Scroll{name: name}
}

func (s *Scroll) Name() string { return s.name }

func (s *Scroll) heightKey() string { return s.name + ".height" }

// Detect reports whether the scroll height exceeds the one recorded at the last scroll.
func (s *Scroll) Detect(ctx context.Context, pc *domain.PluginContext) bool {
	height, err := pc.Page.ScrollHeight(ctx)
	if err != nil {
		return false
	}
	last, _ := pc.Value(s.heightKey())
	return height > last
}

// Act scrolls once and records the settled height. It is a NoOp when the
// document is no taller than at the last scroll.
func (s *Scroll) Act(ctx context.Context, pc *domain.PluginContext) domain.Outcome {
	if err := pc.Page.ScrollToBottom(ctx); err != nil {
		return domain.FailedOutcome(err)
	}
	height, err := pc.Page.ScrollHeight(ctx)
	if err != nil {
		return domain.FailedOutcome(err)
	}
	last, _ := pc.Value(s.heightKey())
	if height <= last {
		return domain.NoOpOutcome()
	}
	pc.SetValue(s.heightKey(), height)
	pc.LastActionAt = time.Now()
	return domain.ActedOutcome()
}
