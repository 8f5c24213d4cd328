package crawlingester

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "CRAWL", cfg.StreamName)
	assert.Equal(t, "crawl-ingester", cfg.ConsumerName)
	assert.Contains(t, cfg.IndexURLTemplate, "{letter}")
	require.NotNil(t, cfg.Ports)
	require.Len(t, cfg.Ports.Inputs, 1)
	assert.Equal(t, "crawl.request.>", cfg.Ports.Inputs[0].Subject)
	require.Len(t, cfg.Ports.Outputs, 1)
	assert.Equal(t, "docs.stored.>", cfg.Ports.Outputs[0].Subject)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing stream name",
			mutate:  func(c *Config) { c.StreamName = "" },
			wantErr: "stream_name",
		},
		{
			name:    "missing consumer name",
			mutate:  func(c *Config) { c.ConsumerName = "" },
			wantErr: "consumer_name",
		},
		{
			name:    "missing index template",
			mutate:  func(c *Config) { c.IndexURLTemplate = "" },
			wantErr: "index_url_template",
		},
		{
			name:    "bad fetch timeout",
			mutate:  func(c *Config) { c.FetchTimeout = "soon" },
			wantErr: "fetch_timeout",
		},
		{
			name:    "bad fetch delay",
			mutate:  func(c *Config) { c.FetchDelay = "-" },
			wantErr: "fetch_delay",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.MaxRetries = -1 },
			wantErr: "max_retries",
		},
		{
			name:    "negative max per letter",
			mutate:  func(c *Config) { c.MaxPerLetter = -5 },
			wantErr: "max_per_letter",
		},
		{
			name: "inbox enabled without dir",
			mutate: func(c *Config) {
				c.Inbox.Enabled = true
				c.Inbox.Dir = ""
			},
			wantErr: "inbox.dir",
		},
		{
			name:    "bad debounce delay",
			mutate:  func(c *Config) { c.Inbox.DebounceDelay = "half a second" },
			wantErr: "debounce_delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DurationDefaults(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, 30*time.Second, cfg.GetFetchTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetFetchDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.Inbox.GetDebounceDelay())

	cfg.FetchTimeout = "10s"
	cfg.FetchDelay = "250ms"
	cfg.Inbox.DebounceDelay = "1s"
	assert.Equal(t, 10*time.Second, cfg.GetFetchTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.GetFetchDelay())
	assert.Equal(t, time.Second, cfg.Inbox.GetDebounceDelay())
}

func TestConfig_FetchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FetchTimeout = "15s"
	cfg.FetchDelay = "1s"
	cfg.MaxRetries = 5
	cfg.UserAgent = "test-agent"
	cfg.MaxContentSize = 4096

	fc := cfg.FetchConfig()
	assert.Equal(t, 15*time.Second, fc.Timeout)
	assert.Equal(t, time.Second, fc.Delay)
	assert.Equal(t, 5, fc.MaxRetries)
	assert.Equal(t, "test-agent", fc.UserAgent)
	assert.Equal(t, int64(4096), fc.MaxContentSize)
}

func TestConfig_CrawlConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPerLetter = 25
	cfg.AllowPatterns = []string{"bsbe/document/*"}

	cc := cfg.CrawlConfig()
	assert.Equal(t, cfg.IndexURLTemplate, cc.IndexURLTemplate)
	assert.Equal(t, 25, cc.MaxPerLetter)
	assert.Equal(t, 3, cc.MinTitleLen)
	assert.Equal(t, []string{"bsbe/document/*"}, cc.AllowPatterns)
}
