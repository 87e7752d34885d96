package cmd

import (
	"context"
	"fmt"

	"github.com/jcfangc/yahoo-crawler/internal/adapter/badgerstore"
	"github.com/jcfangc/yahoo-crawler/internal/adapter/browser"
	"github.com/jcfangc/yahoo-crawler/internal/adapter/filestore"
	"github.com/jcfangc/yahoo-crawler/internal/adapter/plugin"
	"github.com/jcfangc/yahoo-crawler/internal/adapter/sqlite"
	"github.com/jcfangc/yahoo-crawler/internal/config"
	"github.com/jcfangc/yahoo-crawler/internal/discovery"
	"github.com/jcfangc/yahoo-crawler/internal/domain"
	"github.com/jcfangc/yahoo-crawler/internal/extract"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
	"github.com/jcfangc/yahoo-crawler/internal/orchestrator"
	"github.com/jcfangc/yahoo-crawler/internal/session"
)

// app holds the adapters shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	repo     *sqlite.Repository
	links    *domain.LinkService
	comments domain.CommentStore
	closers  []func() error
}

func newApp(configPath, dbPath, logLevel string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = config.ExpandPath(dbPath)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.repo = repo
	a.links = domain.NewLinkService(repo)
	a.closers = append(a.closers, repo.Close)

	comments, err := a.openComments()
	if err != nil {
		a.close()
		return nil, err
	}
	a.comments = comments

	log.Debug("runtime ready",
		logger.String("db", cfg.DBPath),
		logger.String("storage", cfg.Storage.Backend),
	)
	return a, nil
}

func (a *app) openComments() (domain.CommentStore, error) {
	switch a.cfg.Storage.Backend {
	case "badger":
		store, err := badgerstore.Open(a.cfg.Storage.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		store, err := filestore.New(a.cfg.Storage.CommentDir)
		if err != nil {
			return nil, fmt.Errorf("open comment dir: %w", err)
		}
		return store, nil
	}
}

// launch starts the browser and registers it for shutdown. The browser
// outlives ctx so in-flight pages can finish after a signal.
func (a *app) launch(ctx context.Context) (*browser.Browser, error) {
	b, err := browser.Launch(context.WithoutCancel(ctx), browser.Config{
		Headless:      a.cfg.Browser.Headless,
		Bin:           a.cfg.Browser.Bin,
		ControlURL:    a.cfg.Browser.ControlURL,
		SettleTimeout: a.cfg.Browser.SettleTimeout,
		SettleJitter:  a.cfg.Browser.SettleJitter,
		ActionTimeout: a.cfg.Browser.ActionTimeout,
	}, a.log)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	a.closers = append(a.closers, b.Close)
	return b, nil
}

func (a *app) discovery(b domain.Browser) *discovery.Crawler {
	return discovery.New(b, a.links, discovery.Config{
		TargetURL:         a.cfg.Discovery.TargetURL,
		LinkSelector:      a.cfg.Discovery.LinkSelector,
		MaxLinks:          a.cfg.Discovery.MaxLinks,
		ScrollRetries:     a.cfg.Discovery.ScrollRetries,
		NavigationTimeout: a.cfg.Crawl.NavigationTimeout,
	}, a.log)
}

func (a *app) orchestrator(b domain.Browser) (*orchestrator.Orchestrator, error) {
	settings := make(map[string]plugin.Settings, len(a.cfg.Plugins.Settings))
	for name, s := range a.cfg.Plugins.Settings {
		settings[name] = plugin.Settings{Enabled: s.Enabled, Priority: s.Priority}
	}
	plugins, err := plugin.Builtin().Build(settings, a.cfg.Plugins.Order)
	if err != nil {
		return nil, fmt.Errorf("plugins: %w", err)
	}

	bc := a.cfg.Browser
	sessions := session.NewFactory(b, plugins, session.Options{
		NavigationTimeout: a.cfg.Crawl.NavigationTimeout,
		PluginTimeout:     bc.ActionTimeout + bc.SettleTimeout + bc.SettleJitter,
		MaxRounds:         a.cfg.Crawl.MaxRounds,
		MaxPluginFailures: a.cfg.Crawl.MaxPluginFailures,
	}, a.log)

	ec := a.cfg.Extract
	extractor := extract.New(extract.Config{
		RegionSelector:  ec.RegionSelector,
		CommentSelector: ec.CommentSelector,
		AuthorAttr:      ec.AuthorAttr,
		BodySelector:    ec.BodySelector,
		TimeSelector:    ec.TimeSelector,
		TimeAttr:        ec.TimeAttr,
	})

	return orchestrator.New(orchestrator.Deps{
		Links:     a.repo,
		Journal:   a.repo,
		Comments:  a.comments,
		Sessions:  sessions,
		Extractor: extractor,
	}, orchestrator.Options{
		Workers:     a.cfg.Crawl.Workers,
		MaxAttempts: a.cfg.Crawl.MaxAttempts,
	}, a.log), nil
}

// close releases adapters in reverse order of acquisition. It is safe to
// call more than once.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", logger.Err(err))
		}
	}
	a.closers = nil
	_ = a.log.Sync()
}
