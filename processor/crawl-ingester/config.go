package crawlingester

import (
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"

	"github.com/c360studio/lexingest/scraper"
)

// Config holds configuration for the crawl-ingester processor component.
type Config struct {
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// StreamName is the JetStream stream for crawl request messages.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream name,category:basic,default:CRAWL"`

	// ConsumerName is the durable consumer name.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name,category:basic,default:crawl-ingester"`

	// IndexURLTemplate is the partition index page URL with a {letter} placeholder.
	IndexURLTemplate string `json:"index_url_template" schema:"type:string,description:Index page URL template with {letter} placeholder,category:basic"`

	// MaxPerLetter bounds candidates fetched per partition. Zero means unbounded.
	MaxPerLetter int `json:"max_per_letter" schema:"type:int,description:Maximum documents per partition letter,category:basic,default:0"`

	// FetchTimeout is the maximum time for fetching a page.
	FetchTimeout string `json:"fetch_timeout" schema:"type:string,description:HTTP fetch timeout,category:advanced,default:30s"`

	// FetchDelay is the politeness delay between requests and the backoff base.
	FetchDelay string `json:"fetch_delay" schema:"type:string,description:Politeness delay between requests,category:advanced,default:2s"`

	// MaxRetries is the number of retry attempts per URL after the first failure.
	MaxRetries int `json:"max_retries" schema:"type:int,description:Retry attempts per URL,category:advanced,default:3"`

	// UserAgent is the User-Agent header for HTTP requests.
	UserAgent string `json:"user_agent" schema:"type:string,description:HTTP User-Agent header,category:advanced,default:lexingest/1.0"`

	// MaxContentSize is the maximum response body size in bytes.
	MaxContentSize int64 `json:"max_content_size" schema:"type:int,description:Maximum content size in bytes,category:advanced,default:10485760"`

	// MinTitleLen drops link texts at or below this rune count during discovery.
	MinTitleLen int `json:"min_title_len" schema:"type:int,description:Minimum link text length for document candidates,category:advanced,default:3"`

	// AllowPatterns are glob patterns a candidate URL path must match.
	AllowPatterns []string `json:"allow_patterns" schema:"type:array,description:Glob patterns for candidate URL paths,category:advanced"`

	// Inbox configures optional local-file ingestion.
	Inbox InboxConfig `json:"inbox" schema:"type:object,description:Local HTML inbox configuration,category:advanced"`
}

// InboxConfig configures the local HTML drop directory. Files placed in
// the directory are ingested as if they had been crawled, which keeps
// manually exported pages in the same pipeline.
type InboxConfig struct {
	// Enabled controls whether inbox watching is active.
	Enabled bool `json:"enabled" schema:"type:bool,description:Enable local HTML inbox watching,category:advanced,default:false"`

	// Dir is the directory watched for dropped HTML files.
	Dir string `json:"dir" schema:"type:string,description:Inbox directory path,category:advanced,default:./inbox"`

	// DebounceDelay is how long to wait for more changes before processing.
	DebounceDelay string `json:"debounce_delay" schema:"type:string,description:Debounce delay before processing dropped files,category:advanced,default:500ms"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.IndexURLTemplate == "" {
		return fmt.Errorf("index_url_template is required")
	}
	if c.FetchTimeout != "" {
		if _, err := time.ParseDuration(c.FetchTimeout); err != nil {
			return fmt.Errorf("invalid fetch_timeout format: %w", err)
		}
	}
	if c.FetchDelay != "" {
		if _, err := time.ParseDuration(c.FetchDelay); err != nil {
			return fmt.Errorf("invalid fetch_delay format: %w", err)
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.MaxPerLetter < 0 {
		return fmt.Errorf("max_per_letter must be non-negative")
	}
	if c.MaxContentSize < 0 {
		return fmt.Errorf("max_content_size must be non-negative")
	}
	if c.Inbox.Enabled && c.Inbox.Dir == "" {
		return fmt.Errorf("inbox.dir is required when inbox is enabled")
	}
	if c.Inbox.DebounceDelay != "" {
		if _, err := time.ParseDuration(c.Inbox.DebounceDelay); err != nil {
			return fmt.Errorf("invalid inbox.debounce_delay format: %w", err)
		}
	}
	return nil
}

// parseDurationOrDefault parses a duration string and returns the default if empty or invalid.
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

// GetFetchTimeout returns the fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDurationOrDefault(c.FetchTimeout, 30*time.Second)
}

// GetFetchDelay returns the politeness delay as a duration.
func (c *Config) GetFetchDelay() time.Duration {
	return parseDurationOrDefault(c.FetchDelay, 2*time.Second)
}

// GetDebounceDelay returns the inbox debounce delay as a duration.
func (c *InboxConfig) GetDebounceDelay() time.Duration {
	return parseDurationOrDefault(c.DebounceDelay, 500*time.Millisecond)
}

// FetchConfig builds the fetcher configuration from component config.
func (c *Config) FetchConfig() scraper.FetchConfig {
	cfg := scraper.DefaultFetchConfig()
	cfg.Timeout = c.GetFetchTimeout()
	cfg.Delay = c.GetFetchDelay()
	if c.MaxRetries > 0 {
		cfg.MaxRetries = c.MaxRetries
	}
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	if c.MaxContentSize > 0 {
		cfg.MaxContentSize = c.MaxContentSize
	}
	return cfg
}

// CrawlConfig builds the crawl orchestration configuration.
func (c *Config) CrawlConfig() scraper.CrawlConfig {
	return scraper.CrawlConfig{
		IndexURLTemplate: c.IndexURLTemplate,
		MaxPerLetter:     c.MaxPerLetter,
		MinTitleLen:      c.MinTitleLen,
		AllowPatterns:    c.AllowPatterns,
	}
}

// DefaultConfig returns default configuration for crawl-ingester processor.
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        "crawl.in",
			Type:        "jetstream",
			Subject:     "crawl.request.>",
			StreamName:  "CRAWL",
			Required:    true,
			Description: "Crawl run requests",
		},
	}

	outputDefs := []component.PortDefinition{
		{
			Name:        "docs.out",
			Type:        "jetstream",
			Subject:     "docs.stored.>",
			StreamName:  "DOCS",
			Required:    true,
			Description: "Stored document events",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
		StreamName:       "CRAWL",
		ConsumerName:     "crawl-ingester",
		IndexURLTemplate: "https://gesetze.berlin.de/bsbe/search?letter={letter}",
		MaxPerLetter:     0,
		FetchTimeout:     "30s",
		FetchDelay:       "2s",
		MaxRetries:       3,
		UserAgent:        "lexingest/1.0 (legal document indexer)",
		MaxContentSize:   10 * 1024 * 1024, // 10MB
		MinTitleLen:      3,
		Inbox: InboxConfig{
			Enabled:       false,
			Dir:           "./inbox",
			DebounceDelay: "500ms",
		},
	}
}
