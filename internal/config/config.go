package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jcfangc/yahoo-crawler/internal/logger"
)

// Config holds application configuration.
type Config struct {
	DBPath  string        `toml:"db_path"`
	Log     logger.Config `toml:"log"`
	Crawl   CrawlConfig   `toml:"crawl"`
	Browser BrowserConfig `toml:"browser"`
	Storage StorageConfig `toml:"storage"`
	Plugins PluginsConfig `toml:"plugins"`
	Extract ExtractConfig `toml:"extract"`

	Discovery DiscoveryConfig `toml:"discovery"`
	Analyze   AnalyzeConfig   `toml:"analyze"`
	HTTP      HTTPConfig      `toml:"http"`
}

// CrawlConfig controls the orchestrator and page sessions.
type CrawlConfig struct {
	Workers           int           `toml:"workers"`
	MaxAttempts       int           `toml:"max_attempts"`
	NavigationTimeout time.Duration `toml:"navigation_timeout"`
	MaxRounds         int           `toml:"max_rounds"`
	MaxPluginFailures int           `toml:"max_plugin_failures"`
	WatchInterval     time.Duration `toml:"watch_interval"`
}

// BrowserConfig controls the headless browser.
type BrowserConfig struct {
	Headless      bool          `toml:"headless"`
	Bin           string        `toml:"bin"`
	ControlURL    string        `toml:"control_url"`
	SettleTimeout time.Duration `toml:"settle_timeout"`
	SettleJitter  time.Duration `toml:"settle_jitter"`
	ActionTimeout time.Duration `toml:"action_timeout"`
}

// StorageConfig selects the comment store backend.
type StorageConfig struct {
	Backend    string `toml:"backend"`
	CommentDir string `toml:"comment_dir"`
	BadgerDir  string `toml:"badger_dir"`
}

// PluginsConfig selects and orders interaction plugins.
type PluginsConfig struct {
	// Order is "declared" (built-in order) or "priority" (ascending priority).
	Order    string                    `toml:"order"`
	Settings map[string]PluginSettings `toml:"settings"`
}

// PluginSettings configures one plugin by name.
type PluginSettings struct {
	Enabled  *bool `toml:"enabled"`
	Priority int   `toml:"priority"`
}

// ExtractConfig holds the comment-tree selectors.
type ExtractConfig struct {
	RegionSelector  string `toml:"region_selector"`
	CommentSelector string `toml:"comment_selector"`
	AuthorAttr      string `toml:"author_attr"`
	BodySelector    string `toml:"body_selector"`
	TimeSelector    string `toml:"time_selector"`
	TimeAttr        string `toml:"time_attr"`
}

// DiscoveryConfig controls the anchor crawler.
type DiscoveryConfig struct {
	TargetURL     string `toml:"target_url"`
	LinkSelector  string `toml:"link_selector"`
	MaxLinks      int    `toml:"max_links"`
	ScrollRetries int    `toml:"scroll_retries"`
}

// AnalyzeConfig controls the word-frequency analyzer.
type AnalyzeConfig struct {
	StopWordsFile string `toml:"stop_words_file"`
	OutputCSV     string `toml:"output_csv"`
}

// HTTPConfig controls the link intake server.
type HTTPConfig struct {
	Addr string `toml:"addr"`

	// Secret, when set, requires HMAC-signed link submissions.
	Secret string `toml:"secret"`
}

// DefaultDBPath returns the default database path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	return filepath.Join(cacheDir(), "yahoo-crawler", "crawl.db")
}

// DefaultCommentDir returns the default comment file directory.
func DefaultCommentDir() string {
	return filepath.Join(cacheDir(), "yahoo-crawler", "comments")
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "yahoo-crawler", "config.toml")
}

func cacheDir() string {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".cache")
	}
	return dir
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	base := filepath.Join(cacheDir(), "yahoo-crawler")
	return &Config{
		DBPath: DefaultDBPath(),
		Log:    logger.Config{Level: "info"},
		Crawl: CrawlConfig{
			Workers:           3,
			MaxAttempts:       3,
			NavigationTimeout: 60 * time.Second,
			MaxRounds:         200,
			MaxPluginFailures: 3,
			WatchInterval:     30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:      true,
			SettleTimeout: 10 * time.Second,
			SettleJitter:  2 * time.Second,
			ActionTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Backend:    "file",
			CommentDir: DefaultCommentDir(),
			BadgerDir:  filepath.Join(base, "badger"),
		},
		Plugins: PluginsConfig{Order: "declared"},
		Extract: ExtractConfig{
			RegionSelector:  "shreddit-comment-tree",
			CommentSelector: "shreddit-comment",
			AuthorAttr:      "author",
			BodySelector:    `div[slot="comment"]`,
			TimeSelector:    "faceplate-timeago",
			TimeAttr:        "ts",
		},
		Discovery: DiscoveryConfig{
			TargetURL:     "https://www.reddit.com/r/yahoo/",
			LinkSelector:  `shreddit-feed a[slot="full-post-link"][href*="/comments/"]`,
			MaxLinks:      10000,
			ScrollRetries: 5,
		},
		Analyze: AnalyzeConfig{
			StopWordsFile: filepath.Join(base, "analyze", "stop_words_english.txt"),
			OutputCSV:     filepath.Join(base, "analyze", "word_frequency.csv"),
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Env overrides
	if db := os.Getenv("YAHOO_CRAWLER_DB"); db != "" {
		cfg.DBPath = db
	}
	if dir := os.Getenv("YAHOO_CRAWLER_COMMENT_DIR"); dir != "" {
		cfg.Storage.CommentDir = dir
	}
	if workers := os.Getenv("YAHOO_CRAWLER_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("YAHOO_CRAWLER_WORKERS: %w", err)
		}
		cfg.Crawl.Workers = n
	}
	if level := os.Getenv("YAHOO_CRAWLER_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if secret := os.Getenv("YAHOO_CRAWLER_HTTP_SECRET"); secret != "" {
		cfg.HTTP.Secret = secret
	}

	cfg.DBPath = ExpandPath(cfg.DBPath)
	cfg.Storage.CommentDir = ExpandPath(cfg.Storage.CommentDir)
	cfg.Storage.BadgerDir = ExpandPath(cfg.Storage.BadgerDir)
	cfg.Analyze.StopWordsFile = ExpandPath(cfg.Analyze.StopWordsFile)
	cfg.Analyze.OutputCSV = ExpandPath(cfg.Analyze.OutputCSV)

	return cfg, nil
}

// Validate rejects settings the crawler cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Crawl.Workers <= 0 {
		errs = append(errs, errors.New("crawl.workers must be positive"))
	}
	if c.Crawl.MaxAttempts <= 0 {
		errs = append(errs, errors.New("crawl.max_attempts must be positive"))
	}
	if c.Crawl.MaxRounds <= 0 {
		errs = append(errs, errors.New("crawl.max_rounds must be positive"))
	}
	if c.Crawl.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("crawl.navigation_timeout must be positive"))
	}
	if c.Crawl.WatchInterval <= 0 {
		errs = append(errs, errors.New("crawl.watch_interval must be positive"))
	}
	if c.Crawl.MaxPluginFailures <= 0 {
		errs = append(errs, errors.New("crawl.max_plugin_failures must be positive"))
	}
	if c.Browser.SettleTimeout <= 0 {
		errs = append(errs, errors.New("browser.settle_timeout must be positive"))
	}
	if c.Browser.ActionTimeout <= 0 {
		errs = append(errs, errors.New("browser.action_timeout must be positive"))
	}
	if c.Browser.SettleJitter < 0 {
		errs = append(errs, errors.New("browser.settle_jitter must not be negative"))
	}
	switch c.Storage.Backend {
	case "file", "badger":
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: want file or badger", c.Storage.Backend))
	}
	switch c.Plugins.Order {
	case "declared", "priority":
	default:
		errs = append(errs, fmt.Errorf("plugins.order %q: want declared or priority", c.Plugins.Order))
	}
	return errors.Join(errs...)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
