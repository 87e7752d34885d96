package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcfangc/yahoo-crawler/internal/adapter/browser/browsertest"
	"github.com/jcfangc/yahoo-crawler/internal/adapter/filestore"
	"github.com/jcfangc/yahoo-crawler/internal/adapter/plugin"
	"github.com/jcfangc/yahoo-crawler/internal/adapter/sqlite"
	"github.com/jcfangc/yahoo-crawler/internal/domain"
	"github.com/jcfangc/yahoo-crawler/internal/extract"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
	"github.com/jcfangc/yahoo-crawler/internal/session"
)

const (
	urlA = "https://www.reddit.com/r/yahoo/comments/aaa/thread_a/"
	urlB = "https://www.reddit.com/r/yahoo/comments/bbb/thread_b/"
)

const threeComments = `<html><body><shreddit-comment-tree>
<shreddit-comment author="ann"><div slot="comment"><p>first</p></div>
  <shreddit-comment author="ben"><div slot="comment"><p>second</p></div></shreddit-comment>
</shreddit-comment>
<shreddit-comment author="cat"><div slot="comment"><p>third</p></div></shreddit-comment>
</shreddit-comment-tree></body></html>`

var viewMore = browsertest.Key("button", "View more comments")

// threadA needs one "View more comments" click before all three comments show.
func threadA() *browsertest.Page {
	return &browsertest.Page{
		Body:     `<html><body><shreddit-comment-tree></shreddit-comment-tree></body></html>`,
		Controls: map[string]*browsertest.Control{viewMore: {Remaining: 1}},
		OnClick: func(p *browsertest.Page, key string) {
			p.Body = threeComments
		},
	}
}

// threadB never finishes loading.
func threadB() *browsertest.Page {
	return &browsertest.Page{NavigateErr: context.DeadlineExceeded}
}

type env struct {
	repo     *sqlite.Repository
	comments *filestore.Store
	browser  *browsertest.Browser
	plugins  []domain.Plugin
	sessOpts session.Options
	opts     Options
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	repo, err := sqlite.New(filepath.Join(dir, "crawl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	comments, err := filestore.New(filepath.Join(dir, "comments"))
	require.NoError(t, err)

	e := &env{
		repo:     repo,
		comments: comments,
		browser:  &browsertest.Browser{},
		plugins:  plugin.Builtin().Plugins(),
		opts:     Options{Workers: 2, MaxAttempts: 3},
	}
	e.sessOpts = session.Options{
		NavigationTimeout: time.Second,
		PluginTimeout:     time.Second,
		MaxRounds:         20,
		MaxPluginFailures: 3,
	}
	return e
}

func (e *env) site(t *testing.T, url string, page func() *browsertest.Page) domain.DiscussionLink {
	t.Helper()
	link, err := domain.NewDiscussionLink(url, time.Now())
	require.NoError(t, err)
	_, err = e.repo.Add(context.Background(), link)
	require.NoError(t, err)
	e.browser.AddSite(link.URL, page)
	return link
}

func (e *env) orchestrator() *Orchestrator {
	return e.orchestratorWith(e.repo, e.comments)
}

func (e *env) orchestratorWith(journal domain.Journal, comments domain.CommentStore) *Orchestrator {
	log := logger.NewNop()
	return New(Deps{
		Links:     e.repo,
		Journal:   journal,
		Comments:  comments,
		Sessions:  session.NewFactory(e.browser, e.plugins, e.sessOpts, log),
		Extractor: extract.New(extract.DefaultConfig()),
	}, e.opts, log)
}

func (e *env) status(t *testing.T, hash string) *domain.JournalEntry {
	t.Helper()
	entry, err := e.repo.Status(context.Background(), hash)
	require.NoError(t, err)
	return entry
}

func TestRun_DoneAndNavigationFailed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.site(t, urlA, threadA)
	b := e.site(t, urlB, threadB)

	summary, err := e.orchestrator().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Done)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "NavigationFailed: context deadline exceeded", summary.Reasons[b.Hash])

	entryA := e.status(t, a.Hash)
	assert.Equal(t, domain.StatusDone, entryA.Status)
	assert.Equal(t, 3, entryA.Comments)

	entryB := e.status(t, b.Hash)
	assert.Equal(t, domain.StatusFailed, entryB.Status)
	assert.Equal(t, "NavigationFailed: context deadline exceeded", entryB.Reason)
	assert.Equal(t, 1, entryB.Attempts)

	keys, err := e.comments.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Hash}, keys)

	records, err := e.comments.Get(ctx, a.Hash)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, want := range []struct {
		text  string
		depth int
	}{{"first", 0}, {"second", 1}, {"third", 0}} {
		assert.Equal(t, want.text, records[i].Text)
		assert.Equal(t, want.depth, records[i].Depth)
		assert.Equal(t, i, records[i].Order)
	}

	assert.Zero(t, e.browser.Open(), "every page closed")
}

func TestRun_ResumesAfterCrash(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.site(t, urlA, threadA)

	// A previous process claimed the link and died.
	require.NoError(t, e.repo.Claim(ctx, a.Hash, e.opts.MaxAttempts))

	summary, err := e.orchestrator().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Done)

	entry := e.status(t, a.Hash)
	assert.Equal(t, domain.StatusDone, entry.Status)
	assert.Equal(t, 2, entry.Attempts)
}

func TestRun_CrashOnLastAttemptIsTerminal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.site(t, urlA, threadA)

	for i := 0; i < e.opts.MaxAttempts-1; i++ {
		require.NoError(t, e.repo.Claim(ctx, a.Hash, e.opts.MaxAttempts))
		require.NoError(t, e.repo.Fail(ctx, a.Hash, "NavigationFailed: timeout"))
	}
	require.NoError(t, e.repo.Claim(ctx, a.Hash, e.opts.MaxAttempts))

	summary, err := e.orchestrator().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Exhausted)
	assert.Zero(t, summary.Done)
	assert.Zero(t, e.browser.Opened())

	entry := e.status(t, a.Hash)
	assert.Equal(t, domain.StatusFailed, entry.Status)
	assert.Equal(t, "Interrupted: recovered after crash", entry.Reason)
}

func TestRun_RetryBudget(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	b := e.site(t, urlB, threadB)
	o := e.orchestrator()

	for i := 0; i < e.opts.MaxAttempts; i++ {
		summary, err := o.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Failed, "run %d", i)
	}

	summary, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 1, summary.Exhausted)
	assert.Equal(t, e.opts.MaxAttempts, e.browser.Opened())

	entry := e.status(t, b.Hash)
	assert.Equal(t, domain.StatusFailed, entry.Status)
	assert.Equal(t, e.opts.MaxAttempts, entry.Attempts)
}

func TestRun_DoneLinksNotRevisited(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.site(t, urlA, threadA)
	o := e.orchestrator()

	_, err := o.Run(ctx)
	require.NoError(t, err)
	summary, err := o.Run(ctx)
	require.NoError(t, err)

	assert.Zero(t, summary.Done)
	assert.Equal(t, 1, e.browser.Opened())
}

func TestRun_UnstableStoresBestEffort(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.sessOpts.MaxRounds = 3
	a := e.site(t, urlA, func() *browsertest.Page {
		return &browsertest.Page{
			Body:     threeComments,
			Controls: map[string]*browsertest.Control{viewMore: {Sticky: true}},
		}
	})

	summary, err := e.orchestrator().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	entry := e.status(t, a.Hash)
	assert.Equal(t, domain.StatusFailed, entry.Status)
	assert.True(t, strings.HasPrefix(entry.Reason, "Unstable: "), entry.Reason)

	records, err := e.comments.Get(ctx, a.Hash)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRun_EmptyExtraction(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.site(t, urlA, func() *browsertest.Page {
		return &browsertest.Page{Body: "<html><body>[removed]</body></html>"}
	})

	summary, err := e.orchestrator().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Done)
	assert.Equal(t, 1, summary.Empty)

	entry := e.status(t, a.Hash)
	assert.Equal(t, domain.StatusDone, entry.Status)
	assert.Zero(t, entry.Comments)

	ok, err := e.comments.Exists(ctx, a.Hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingComments struct {
	domain.CommentStore
	err error
}

func (f *failingComments) Put(ctx context.Context, hash string, records []domain.CommentRecord) error {
	return f.err
}

func TestRun_StorageFailure(t *testing.T) {
	e := newEnv(t)
	a := e.site(t, urlA, threadA)

	o := e.orchestratorWith(e.repo, &failingComments{CommentStore: e.comments, err: errors.New("disk full")})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	entry := e.status(t, a.Hash)
	assert.Equal(t, domain.StatusFailed, entry.Status)
	assert.Equal(t, "StorageFailure: disk full", entry.Reason)
}

type failingJournal struct {
	domain.Journal
	err error
}

func (f *failingJournal) Complete(ctx context.Context, hash string, comments int) error {
	return f.err
}

func TestRun_JournalFailureHaltsRun(t *testing.T) {
	e := newEnv(t)
	e.site(t, urlA, threadA)
	errDisk := errors.New("database is locked")

	o := e.orchestratorWith(&failingJournal{Journal: e.repo, err: errDisk}, e.comments)
	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
}

type cancelPlugin struct {
	cancel context.CancelFunc
}

func (p *cancelPlugin) Name() string { return "cancel" }

func (p *cancelPlugin) Detect(ctx context.Context, pc *domain.PluginContext) bool { return true }

func (p *cancelPlugin) Act(ctx context.Context, pc *domain.PluginContext) domain.Outcome {
	p.cancel()
	return domain.ActedOutcome()
}

func TestRun_ShutdownReleasesLink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newEnv(t)
	e.opts.Workers = 1
	e.plugins = []domain.Plugin{&cancelPlugin{cancel: cancel}}
	a := e.site(t, urlA, threadA)

	summary, err := e.orchestrator().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Interrupted)

	entry := e.status(t, a.Hash)
	assert.Equal(t, domain.StatusPending, entry.Status)
	assert.Zero(t, entry.Attempts)
	assert.Zero(t, e.browser.Open())
}

func TestWatch_PicksUpNewLinks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newEnv(t)
	o := e.orchestrator()

	done := make(chan struct{})
	go func() {
		o.Watch(ctx, 20*time.Millisecond)
		close(done)
	}()

	// Submitted while the watcher is idle.
	a := e.site(t, urlA, threadA)

	require.Eventually(t, func() bool {
		entry, err := e.repo.Status(context.Background(), a.Hash)
		return err == nil && entry.Status == domain.StatusDone
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("watch did not stop after context cancellation")
	}
}
