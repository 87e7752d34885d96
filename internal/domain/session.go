package domain

import (
	"context"
	"time"
)

// OutcomeKind is the result class of one plugin Act call.
type OutcomeKind int

const (
	// Acted means the DOM changed and the scan restarts from the top.
	Acted OutcomeKind = iota
	// NoOp means there was nothing to do; the scan moves on.
	NoOp
	// Failed means the action errored.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Acted:
		return "acted"
	case NoOp:
		return "noop"
	default:
		return "failed"
	}
}

// Outcome is the transient result of one plugin invocation.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func ActedOutcome() Outcome { return Outcome{Kind: Acted} }
func NoOpOutcome() Outcome  { return Outcome{Kind: NoOp} }

// FailedOutcome records err as the failure reason.
func FailedOutcome(err error) Outcome {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{Kind: Failed, Reason: reason}
}

// Plugin is one composable unit of page interaction. Detect must be cheap and
// side-effect free; Act performs a single bounded action and must be a safe
// NoOp when the work detected earlier has disappeared.
type Plugin interface {
	Name() string
	Detect(ctx context.Context, pc *PluginContext) bool
	Act(ctx context.Context, pc *PluginContext) Outcome
}

// PluginContext is the per-session state handed to plugins. The page is
// borrowed for the session lifetime and must not be closed by plugins.
type PluginContext struct {
	Page         Page
	Attempt      int
	Round        int
	LastActionAt time.Time

	terminated bool
	values     map[string]int
}

// NewPluginContext creates a context around a borrowed page.
func NewPluginContext(page Page, attempt int) *PluginContext {
	return &PluginContext{Page: page, Attempt: attempt, values: make(map[string]int)}
}

// Terminate asks the session to stop the loop after the current plugin.
func (pc *PluginContext) Terminate() { pc.terminated = true }

// Terminated reports whether Terminate was called.
func (pc *PluginContext) Terminated() bool { return pc.terminated }

// Value returns a plugin-scoped integer recorded earlier in this session.
func (pc *PluginContext) Value(key string) (int, bool) {
	v, ok := pc.values[key]
	return v, ok
}

// SetValue records a plugin-scoped integer for later rounds.
func (pc *PluginContext) SetValue(key string, v int) {
	pc.values[key] = v
}

// RawPage is the DOM snapshot of a page after the plugin loop.
type RawPage struct {
	URL     string
	HTML    string
	Rounds  int
	Actions int
}
