// Package config provides configuration loading and management for lexingest.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/lexingest/source/chunker"
)

// Config represents the complete lexingest configuration
type Config struct {
	Crawl    CrawlConfig    `yaml:"crawl"`
	Chunking ChunkingConfig `yaml:"chunking"`
	NATS     NATSConfig     `yaml:"nats"`
	Inbox    InboxConfig    `yaml:"inbox"`
}

// CrawlConfig configures the crawl pipeline
type CrawlConfig struct {
	// IndexURLTemplate is the partition index page URL with a {letter} placeholder
	IndexURLTemplate string `yaml:"index_url_template"`
	// Letters are the default partition keys for a full crawl
	Letters []string `yaml:"letters"`
	// MaxPerLetter bounds documents fetched per partition (0 = unbounded)
	MaxPerLetter int `yaml:"max_per_letter"`
	// FetchTimeout is the per-request bound (e.g. "30s")
	FetchTimeout string `yaml:"fetch_timeout"`
	// FetchDelay is the politeness delay and backoff base (e.g. "2s")
	FetchDelay string `yaml:"fetch_delay"`
	// MaxRetries is the retry attempts per URL after the first failure
	MaxRetries int `yaml:"max_retries"`
	// UserAgent is the User-Agent header for HTTP requests
	UserAgent string `yaml:"user_agent"`
	// AllowPatterns are glob patterns a candidate URL path must match
	AllowPatterns []string `yaml:"allow_patterns"`
	// MinTitleLen drops link texts at or below this rune count
	MinTitleLen int `yaml:"min_title_len"`
}

// ChunkingConfig configures document chunking
type ChunkingConfig struct {
	// Strategy selects words or paragraphs
	Strategy string `yaml:"strategy"`
	// ChunkSize is the target chunk size in words
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the word overlap between consecutive chunks
	ChunkOverlap int `yaml:"chunk_overlap"`
	// MinChunkSize is the smallest mid-document chunk in words
	MinChunkSize int `yaml:"min_chunk_size"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
}

// InboxConfig configures the local HTML drop directory
type InboxConfig struct {
	// Enabled controls whether inbox watching is active
	Enabled bool `yaml:"enabled"`
	// Dir is the directory watched for dropped HTML files
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			IndexURLTemplate: "https://gesetze.berlin.de/bsbe/search?letter={letter}",
			Letters: []string{
				"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
				"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
			},
			MaxPerLetter: 0,
			FetchTimeout: "30s",
			FetchDelay:   "2s",
			MaxRetries:   3,
			UserAgent:    "lexingest/1.0 (legal document indexer)",
			MinTitleLen:  3,
		},
		Chunking: ChunkingConfig{
			Strategy:     chunker.StrategyWords,
			ChunkSize:    500,
			ChunkOverlap: 50,
			MinChunkSize: 100,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Inbox: InboxConfig{
			Enabled: false,
			Dir:     "./inbox",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Crawl.IndexURLTemplate == "" {
		return fmt.Errorf("crawl.index_url_template is required")
	}
	if c.Crawl.MaxPerLetter < 0 {
		return fmt.Errorf("crawl.max_per_letter must be non-negative")
	}
	if c.Crawl.MaxRetries < 0 {
		return fmt.Errorf("crawl.max_retries must be non-negative")
	}
	if c.Crawl.FetchTimeout != "" {
		if _, err := time.ParseDuration(c.Crawl.FetchTimeout); err != nil {
			return fmt.Errorf("invalid crawl.fetch_timeout: %w", err)
		}
	}
	if c.Crawl.FetchDelay != "" {
		if _, err := time.ParseDuration(c.Crawl.FetchDelay); err != nil {
			return fmt.Errorf("invalid crawl.fetch_delay: %w", err)
		}
	}
	if c.Chunking.Strategy != "" &&
		c.Chunking.Strategy != chunker.StrategyWords &&
		c.Chunking.Strategy != chunker.StrategyParagraphs {
		return fmt.Errorf("chunking.strategy must be %q or %q", chunker.StrategyWords, chunker.StrategyParagraphs)
	}
	if c.Chunking.ChunkSize != 0 {
		if err := c.ChunkerConfig().Validate(); err != nil {
			return fmt.Errorf("chunking: %w", err)
		}
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	return nil
}

// GetFetchTimeout returns the fetch timeout as a duration.
func (c *CrawlConfig) GetFetchTimeout() time.Duration {
	return parseDurationOrDefault(c.FetchTimeout, 30*time.Second)
}

// GetFetchDelay returns the politeness delay as a duration.
func (c *CrawlConfig) GetFetchDelay() time.Duration {
	return parseDurationOrDefault(c.FetchDelay, 2*time.Second)
}

func parseDurationOrDefault(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// ChunkerConfig builds the chunker configuration.
func (c *Config) ChunkerConfig() chunker.Config {
	if c.Chunking.ChunkSize == 0 {
		return chunker.DefaultConfig()
	}
	return chunker.Config{
		ChunkSize:    c.Chunking.ChunkSize,
		ChunkOverlap: c.Chunking.ChunkOverlap,
		MinChunkSize: c.Chunking.MinChunkSize,
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Crawl
	if other.Crawl.IndexURLTemplate != "" {
		c.Crawl.IndexURLTemplate = other.Crawl.IndexURLTemplate
	}
	if len(other.Crawl.Letters) > 0 {
		c.Crawl.Letters = other.Crawl.Letters
	}
	if other.Crawl.MaxPerLetter != 0 {
		c.Crawl.MaxPerLetter = other.Crawl.MaxPerLetter
	}
	if other.Crawl.FetchTimeout != "" {
		c.Crawl.FetchTimeout = other.Crawl.FetchTimeout
	}
	if other.Crawl.FetchDelay != "" {
		c.Crawl.FetchDelay = other.Crawl.FetchDelay
	}
	if other.Crawl.MaxRetries != 0 {
		c.Crawl.MaxRetries = other.Crawl.MaxRetries
	}
	if other.Crawl.UserAgent != "" {
		c.Crawl.UserAgent = other.Crawl.UserAgent
	}
	if len(other.Crawl.AllowPatterns) > 0 {
		c.Crawl.AllowPatterns = other.Crawl.AllowPatterns
	}
	if other.Crawl.MinTitleLen != 0 {
		c.Crawl.MinTitleLen = other.Crawl.MinTitleLen
	}

	// Chunking
	if other.Chunking.Strategy != "" {
		c.Chunking.Strategy = other.Chunking.Strategy
	}
	if other.Chunking.ChunkSize != 0 {
		c.Chunking.ChunkSize = other.Chunking.ChunkSize
	}
	if other.Chunking.ChunkOverlap != 0 {
		c.Chunking.ChunkOverlap = other.Chunking.ChunkOverlap
	}
	if other.Chunking.MinChunkSize != 0 {
		c.Chunking.MinChunkSize = other.Chunking.MinChunkSize
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Inbox
	if other.Inbox.Enabled {
		c.Inbox.Enabled = true
	}
	if other.Inbox.Dir != "" {
		c.Inbox.Dir = other.Inbox.Dir
	}
}
