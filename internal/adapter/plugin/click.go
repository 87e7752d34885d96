package plugin

import (
	"context"
	"errors"
	"time"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

// Click clicks one element matching a selector (and text, when set) per Act.
type Click struct {
	name     string
	selector string
	text     string
}

// NewClick returns a click plugin.
func NewClick(name, selector, text string) *Click {
	return &Click{name: name, selector: selector, text: text}
}

func (c *Click) Name() string { return c.name }

// Detect reports whether at least one matching element is on the page.
func (c *Click) Detect(ctx context.Context, pc *domain.PluginContext) bool {
	n, err := pc.Page.Count(ctx, c.selector, c.text)
	return err == nil && n > 0
}

// Act clicks the first matching element. A control that vanished since
// Detect is a NoOp.
func (c *Click) Act(ctx context.Context, pc *domain.PluginContext) domain.Outcome {
	err := pc.Page.ClickFirst(ctx, c.selector, c.text)
	if errors.Is(err, domain.ErrNoElement) {
		return domain.NoOpOutcome()
	}
	if err != nil {
		return domain.FailedOutcome(err)
	}
	pc.LastActionAt = time.Now()
	return domain.ActedOutcome()
}
