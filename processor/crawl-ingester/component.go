// Package crawlingester provides a component that runs crawl requests
// against the configured legal-document index and persists the results.
package crawlingester

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/lexingest/scraper"
	"github.com/c360studio/lexingest/source"
	"github.com/c360studio/lexingest/storage"
)

// crawlIngesterSchema defines the configuration schema.
var crawlIngesterSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Component implements the crawl-ingester processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger
	platform   component.PlatformMeta
	handler    *Handler
	store      *storage.Store

	// Lifecycle management
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup // Tracks running goroutines for graceful shutdown

	// Metrics
	crawlsCompleted atomic.Int64
	documentsStored atomic.Int64
	filesIngested   atomic.Int64
	errors          atomic.Int64
	lastActivityMu  sync.RWMutex
	lastActivity    time.Time
}

// NewComponent creates a new crawl-ingester processor component.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Use default config if ports not set
	if config.Ports == nil {
		config = DefaultConfig()
		// Re-unmarshal to get user-provided values
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Component{
		name:       "crawl-ingester",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
		platform:   deps.Platform,
	}

	return c, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	return nil
}

// Start begins processing crawl requests.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}
	// Mark as starting immediately to prevent concurrent starts
	c.running = true
	c.startTime = time.Now()
	c.mu.Unlock()

	store, err := storage.NewStore(ctx, c.natsClient, storage.WithLogger(c.logger))
	if err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return fmt.Errorf("create store: %w", err)
	}
	c.store = store
	c.handler = NewHandler(c.config, store, c.natsClient, c.logger)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	// Start consumer in background with WaitGroup tracking
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeMessages(runCtx)
	}()

	if c.config.Inbox.Enabled {
		if err := c.startInbox(runCtx); err != nil {
			c.logger.Error("Failed to start inbox watcher", "error", err)
		}
	}

	c.logger.Info("Crawl ingester started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName)

	return nil
}

// consumeMessages processes incoming crawl requests.
func (c *Component) consumeMessages(ctx context.Context) {
	js, err := c.natsClient.JetStream()
	if err != nil {
		c.logger.Error("Failed to get JetStream context", "error", err)
		return
	}

	// Get or create consumer
	consumer, err := js.Consumer(ctx, c.config.StreamName, c.config.ConsumerName)
	if err != nil {
		c.logger.Error("Failed to get consumer", "error", err, "stream", c.config.StreamName, "consumer", c.config.ConsumerName)
		return
	}

	c.logger.Info("Consumer connected", "stream", c.config.StreamName, "consumer", c.config.ConsumerName)

	// Consume messages
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Fetch next message with timeout
		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue // Timeout, try again
		}

		for msg := range msgs.Messages() {
			select {
			case <-ctx.Done():
				// NAK the current message so it can be redelivered
				_ = msg.Nak()
				// Drain remaining messages from this batch
				for remaining := range msgs.Messages() {
					_ = remaining.Nak()
				}
				return
			default:
				c.handleMessage(ctx, msg)
			}
		}
	}
}

// handleMessage processes a single crawl request.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	c.updateLastActivity()

	var req source.CrawlRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		c.logger.Warn("Failed to parse crawl request", "error", err)
		c.errors.Add(1)
		_ = msg.Nak()
		return
	}

	c.logger.Info("Processing crawl request",
		"job_id", req.JobID,
		"letters", req.Letters,
		"max_per_letter", req.MaxPerLetter)

	job, err := c.handler.HandleCrawl(ctx, req)
	if err != nil {
		c.logger.Error("Crawl request failed", "job_id", req.JobID, "error", err)
		c.errors.Add(1)
		_ = msg.Nak()
		return
	}

	c.crawlsCompleted.Add(1)
	c.documentsStored.Add(int64(job.SaveStats.Saved))
	_ = msg.Ack()

	c.logger.Info("Crawl request completed",
		"job_id", job.ID,
		"saved", job.SaveStats.Saved,
		"duplicates", job.SaveStats.Duplicates)
}

// startInbox starts the local HTML inbox watcher and its consumer goroutine.
func (c *Component) startInbox(ctx context.Context) error {
	watcher, err := NewInboxWatcher(c.config.Inbox, c.logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { _ = watcher.Stop() }()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events():
				if !ok {
					return
				}
				c.ingestInboxFile(ctx, event.Path)
			}
		}
	}()

	return nil
}

// ingestInboxFile ingests one dropped HTML file as a document. The file
// path becomes a file:// URL so dedup and ID generation work the same as
// for crawled pages.
func (c *Component) ingestInboxFile(ctx context.Context, path string) {
	c.updateLastActivity()

	content, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("Failed to read inbox file", "path", path, "error", err)
		c.errors.Add(1)
		return
	}

	fileURL := "file://" + filepath.ToSlash(path)
	result, err := scraper.NewConverter().Convert(content, fileURL)
	if err != nil || result.Markdown == "" {
		c.logger.Warn("Failed to convert inbox file", "path", path, "error", err)
		c.errors.Add(1)
		return
	}

	title := result.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	raw := source.RawDocument{
		Title:       title,
		URL:         fileURL,
		Content:     result.Markdown,
		ContentHash: source.ContentHash(result.Markdown),
		DocType:     source.ClassifyDocType(title),
		ScrapedAt:   time.Now().UTC(),
	}

	id, created, err := c.store.SaveDocument(ctx, raw)
	if err != nil {
		c.logger.Warn("Failed to save inbox document", "path", path, "error", err)
		c.errors.Add(1)
		return
	}
	if !created {
		c.logger.Debug("Inbox file already stored", "path", path, "id", id)
		return
	}

	c.filesIngested.Add(1)
	c.documentsStored.Add(1)

	if err := c.handler.publishStored(ctx, id, fileURL, ""); err != nil {
		c.logger.Warn("Failed to publish stored event", "id", id, "error", err)
	}

	c.logger.Info("Inbox file ingested", "path", path, "id", id)
}

// updateLastActivity safely updates the last activity timestamp.
func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

// getLastActivity safely retrieves the last activity timestamp.
func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}

// Stop gracefully stops the component within the given timeout.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		// Graceful shutdown completed
	case <-time.After(timeout):
		err = fmt.Errorf("stop timed out after %v", timeout)
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.logger.Info("Crawl ingester stopped",
		"crawls_completed", c.crawlsCompleted.Load(),
		"documents_stored", c.documentsStored.Load(),
		"files_ingested", c.filesIngested.Load(),
		"errors", c.errors.Load())

	return err
}

// Discoverable interface implementation

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "crawl-ingester",
		Type:        "processor",
		Description: "Legal document crawler with dedup persistence",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = buildPort(portDef, component.DirectionInput)
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = buildPort(portDef, component.DirectionOutput)
	}
	return ports
}

// buildPort creates a component.Port from a PortDefinition.
func buildPort(portDef component.PortDefinition, direction component.Direction) component.Port {
	port := component.Port{
		Name:        portDef.Name,
		Direction:   direction,
		Required:    portDef.Required,
		Description: portDef.Description,
	}
	if portDef.Type == "jetstream" {
		port.Config = component.JetStreamPort{
			StreamName: portDef.StreamName,
			Subjects:   []string{portDef.Subject},
		}
	} else {
		port.Config = component.NATSPort{
			Subject: portDef.Subject,
		}
	}
	return port
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return crawlIngesterSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errors.Load()),
		Uptime:     time.Since(startTime),
		Status:     c.getStatusString(running),
	}
}

// getStatusString returns a status string based on running state.
func (c *Component) getStatusString(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}
