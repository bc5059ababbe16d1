// Package config loads tool configuration: defaults, an optional YAML file,
// then environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "DIGEST_CONFIG"
	snapshotPathEnv  = "SNAPSHOT_PATH"
	geminiAPIKeyEnv  = "GEMINI_API_KEY"
	geminiModelEnv   = "GEMINI_MODEL"
	geminiBaseURLEnv = "GEMINI_BASE_URL"
	maxPerRunEnv     = "MAX_PER_RUN"
	retentionDaysEnv = "RETENTION_DAYS"
	logLevelEnv      = "LOG_LEVEL"
)

// Config holds all settings for one run.
type Config struct {
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Logging  LoggingConfig  `yaml:"logging"`
	Feeds    []FeedConfig   `yaml:"feeds"`
}

// SnapshotConfig locates the persisted state file.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// ArchiveConfig is the retention policy. RetentionDays 0 disables age-based
// retention (unbounded archive); identity dedup alone bounds growth then.
type ArchiveConfig struct {
	RetentionDays int `yaml:"retentionDays"`
}

// EnrichConfig drives batching, quota, pacing, and in-run retry.
type EnrichConfig struct {
	MaxPerRun             int     `yaml:"maxPerRun"`
	BatchSize             int     `yaml:"batchSize"`
	CallsPerSecond        float64 `yaml:"callsPerSecond"`
	MaxRetries            int     `yaml:"maxRetries"`
	RequestTimeoutSeconds int     `yaml:"requestTimeoutSeconds"`
	TargetLanguage        string  `yaml:"targetLanguage"`
}

// RequestTimeout returns the per-call timeout as a duration.
func (e EnrichConfig) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSeconds) * time.Second
}

// GeminiConfig wires the enrichment service client.
type GeminiConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FeedConfig describes one RSS/Atom source.
type FeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// Load reads configuration. The YAML file (env DIGEST_CONFIG, or the path
// argument when non-empty) is unmarshaled over the defaults, so a key left
// out keeps its default and an explicit zero wins. Environment variables
// override last.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultFeeds()
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(snapshotPathEnv); v != "" {
		c.Snapshot.Path = v
	}
	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv(geminiBaseURLEnv); v != "" {
		c.Gemini.BaseURL = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(maxPerRunEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Enrich.MaxPerRun = n
		}
	}
	if v := os.Getenv(retentionDaysEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Archive.RetentionDays = n
		}
	}
}

func defaultConfig() Config {
	return Config{
		Snapshot: SnapshotConfig{Path: "articles.json"},
		Archive:  ArchiveConfig{RetentionDays: 7},
		Enrich: EnrichConfig{
			MaxPerRun:             50,
			BatchSize:             1,
			CallsPerSecond:        1,
			MaxRetries:            2,
			RequestTimeoutSeconds: 120,
			TargetLanguage:        "Korean",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func defaultFeeds() []FeedConfig {
	return []FeedConfig{
		{Name: "Nature", URL: "https://www.nature.com/nature/rss/articles?type=news", Category: "News"},
		{Name: "Science", URL: "https://www.science.org/rss/news_current.xml", Category: "News"},
		{Name: "The Transmitter", URL: "https://www.thetransmitter.org/feed/", Category: "Neuroscience"},
		{Name: "Cell", URL: "https://www.cell.com/cell/current.rss", Category: "Paper"},
		{Name: "Nature Neuroscience", URL: "https://www.nature.com/neuro/current_issue/rss", Category: "Paper"},
		{Name: "STAT News", URL: "https://www.statnews.com/feed/", Category: "News"},
		{Name: "Ars Technica", URL: "https://arstechnica.com/science/feed/", Category: "News"},
		{Name: "Fierce Biotech", URL: "https://www.fiercebiotech.com/rss/xml", Category: "News"},
		{Name: "Endpoints News", URL: "https://endpts.com/feed/", Category: "News"},
		{Name: "NEJM", URL: "https://www.nejm.org/action/showFeed?jc=nejm&type=etoc&feed=rss", Category: "Paper"},
	}
}
