package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/jcfangc/yahoo-crawler/internal/adapter/browser/browsertest"
	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

func TestClick_DetectAndAct(t *testing.T) {
	ctx := context.Background()
	key := browsertest.Key("button", "more replies")
	page := &browsertest.Page{Controls: map[string]*browsertest.Control{key: {Remaining: 2}}}
	pc := domain.NewPluginContext(page, 1)
	c := NewClick("more", "button", "more replies")

	for i := 0; i < 2; i++ {
		if !c.Detect(ctx, pc) {
			t.Fatalf("Detect() #%d = false, want true", i)
		}
		if got := c.Act(ctx, pc); got.Kind != domain.Acted {
			t.Fatalf("Act() #%d = %v, want acted", i, got.Kind)
		}
	}
	if c.Detect(ctx, pc) {
		t.Error("Detect() after all clicks = true, want false")
	}
	if pc.LastActionAt.IsZero() {
		t.Error("LastActionAt not recorded")
	}
	if got := len(page.Clicks()); got != 2 {
		t.Errorf("clicks = %d, want 2", got)
	}
}

func TestClick_VanishedIsNoOp(t *testing.T) {
	page := &browsertest.Page{}
	pc := domain.NewPluginContext(page, 1)
	c := NewClick("gone", "button", "")

	if got := c.Act(context.Background(), pc); got.Kind != domain.NoOp {
		t.Errorf("Act() = %v, want noop", got.Kind)
	}
}

func TestClick_ErrorIsFailed(t *testing.T) {
	key := browsertest.Key("button", "")
	page := &browsertest.Page{Controls: map[string]*browsertest.Control{
		key: {Remaining: 1, Err: errors.New("detached node")},
	}}
	pc := domain.NewPluginContext(page, 1)

	got := NewClick("broken", "button", "").Act(context.Background(), pc)
	if got.Kind != domain.Failed {
		t.Fatalf("Act() = %v, want failed", got.Kind)
	}
	if got.Reason != "detached node" {
		t.Errorf("Reason = %q, want %q", got.Reason, "detached node")
	}
}

func TestScroll_DetectsGrowth(t *testing.T) {
	ctx := context.Background()
	page := &browsertest.Page{Heights: []int{1000, 2000, 2000}}
	pc := domain.NewPluginContext(page, 1)
	s := NewScroll("scroll")

	if !s.Detect(ctx, pc) {
		t.Fatal("Detect() on fresh page = false, want true")
	}
	if got := s.Act(ctx, pc); got.Kind != domain.Acted {
		t.Fatalf("Act() = %v, want acted", got.Kind)
	}
	// Height after the first scroll is recorded.
	if h, _ := pc.Value(s.heightKey()); h != 2000 {
		t.Errorf("recorded height = %d, want 2000", h)
	}
	if s.Detect(ctx, pc) {
		t.Error("Detect() without growth = true, want false")
	}

	page.Heights = []int{3000}
	if !s.Detect(ctx, pc) {
		t.Error("Detect() after growth = false, want true")
	}
}

func TestScroll_ActWithoutGrowthIsNoOp(t *testing.T) {
	ctx := context.Background()
	page := &browsertest.Page{Heights: []int{1000}}
	pc := domain.NewPluginContext(page, 1)
	s := NewScroll("scroll")
	pc.SetValue(s.heightKey(), 1000)

	if s.Detect(ctx, pc) {
		t.Fatal("Detect() at recorded height = true, want false")
	}
	got := s.Act(ctx, pc)
	if got.Kind != domain.NoOp {
		t.Fatalf("Act() without growth = %v, want noop", got.Kind)
	}
	if page.Scrolls() != 1 {
		t.Errorf("Scrolls() = %d, want 1", page.Scrolls())
	}
	if !pc.LastActionAt.IsZero() {
		t.Error("LastActionAt set by a NoOp scroll")
	}
}

func TestScroll_EmptyPage(t *testing.T) {
	s := NewScroll("scroll")
	if s.Detect(context.Background(), domain.NewPluginContext(&browsertest.Page{}, 1)) {
		t.Error("Detect() on zero-height page = true, want false")
	}
}
