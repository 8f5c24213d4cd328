// Package main provides the lexingest binary entry point.
// Lexingest crawls a legal-document index, deduplicates and stores the
// documents, and chunks them for retrieval indexing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/semstreams/component"
	semconfig "github.com/c360studio/semstreams/config"
	"github.com/c360studio/semstreams/metric"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semstreams/service"
	"github.com/c360studio/semstreams/types"
	"github.com/spf13/cobra"

	appconfig "github.com/c360studio/lexingest/config"
	crawlingester "github.com/c360studio/lexingest/processor/crawl-ingester"
	docchunker "github.com/c360studio/lexingest/processor/doc-chunker"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "lexingest"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "lexingest",
		Short: "Legal document ingestion pipeline",
		Long: `Lexingest ingests legal documents from an alphabetically partitioned
web index into a NATS-backed document store.

It provides:
- Polite, retried crawling of index and document pages
- URL and content-hash deduplication on save
- Word-window and paragraph chunking for retrieval indexing

All components communicate via NATS using the semstreams framework.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(configPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(crawlCmd(&configPath, &logLevel))
	cmd.AddCommand(processCmd(&configPath, &logLevel))
	cmd.AddCommand(statusCmd(&configPath, &logLevel))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setupLogging configures the default slog logger and returns it.
func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadAppConfig loads the YAML application config, from an explicit path
// or via the layered loader.
func loadAppConfig(configPath string, logger *slog.Logger) (*appconfig.Config, error) {
	if configPath != "" {
		cfg, err := appconfig.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if envURL := os.Getenv("NATS_URL"); envURL != "" {
			cfg.NATS.URL = envURL
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return appconfig.NewLoader(logger).Load()
}

// runService starts the full pipeline: both processor components wired
// through the semstreams service manager, running until a signal.
func runService(configPath, logLevel string) error {
	printBanner()
	logger := setupLogging(logLevel)

	appCfg, err := loadAppConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	natsClient, err := connectToNATS(ctx, appCfg.NATS.URL, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	cfg, err := buildPlatformConfig(appCfg)
	if err != nil {
		return fmt.Errorf("build platform config: %w", err)
	}

	// Ensure JetStream streams exist
	if err := ensureStreams(ctx, cfg, natsClient, logger); err != nil {
		return err
	}

	slog.Info("Lexingest ready", "version", Version)

	// Create remaining infrastructure
	metricsRegistry := metric.NewMetricsRegistry()
	platform := extractPlatformMeta(cfg)

	// Create and start config manager (required for component-manager to access component configs)
	configManager, err := semconfig.NewConfigManager(cfg, natsClient, logger)
	if err != nil {
		return fmt.Errorf("create config manager: %w", err)
	}
	if err := configManager.Start(ctx); err != nil {
		return fmt.Errorf("start config manager: %w", err)
	}
	defer configManager.Stop(5 * time.Second)

	slog.Info("Platform identity configured",
		"org", platform.Org,
		"platform", platform.Platform)

	// Create and populate component registry
	componentRegistry := component.NewRegistry()

	slog.Debug("Registering lexingest component factories")
	if err := crawlingester.Register(componentRegistry); err != nil {
		return fmt.Errorf("register crawl-ingester: %w", err)
	}
	if err := docchunker.Register(componentRegistry); err != nil {
		return fmt.Errorf("register doc-chunker: %w", err)
	}

	factories := componentRegistry.ListFactories()
	slog.Info("Component factories registered", "count", len(factories))

	// Create service registry and manager (semstreams pattern)
	serviceRegistry := service.NewServiceRegistry()
	if err := service.RegisterAll(serviceRegistry); err != nil {
		return fmt.Errorf("register services: %w", err)
	}

	manager := service.NewServiceManager(serviceRegistry)
	ensureServiceManagerConfig(cfg)

	// Create service dependencies
	svcDeps := &service.Dependencies{
		NATSClient:        natsClient,
		MetricsRegistry:   metricsRegistry,
		Logger:            logger,
		Platform:          platform,
		Manager:           configManager,
		ComponentRegistry: componentRegistry,
	}

	// Configure and create services
	if err := configureAndCreateServices(cfg, manager, svcDeps); err != nil {
		return err
	}

	slog.Info("All services configured")

	// Setup signal handling
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Start all services (includes HTTP server with health endpoints)
	slog.Info("Starting all services")
	if err := manager.StartAll(signalCtx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	slog.Info("All services started successfully")

	// Block until shutdown signal
	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	// Stop all services
	shutdownTimeout := 30 * time.Second
	if err := manager.StopAll(shutdownTimeout); err != nil {
		slog.Error("Error stopping services", "error", err)
	}

	slog.Info("Lexingest shutdown complete")
	return nil
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║            Lexingest v" + Version + "                    ║")
	fmt.Println("║      Legal Document Ingestion Pipeline        ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}

// buildPlatformConfig maps the YAML application config onto the
// semstreams platform config: streams plus both processor components.
func buildPlatformConfig(appCfg *appconfig.Config) (*semconfig.Config, error) {
	ingesterCfg := crawlingester.DefaultConfig()
	ingesterCfg.IndexURLTemplate = appCfg.Crawl.IndexURLTemplate
	ingesterCfg.MaxPerLetter = appCfg.Crawl.MaxPerLetter
	ingesterCfg.FetchTimeout = appCfg.Crawl.FetchTimeout
	ingesterCfg.FetchDelay = appCfg.Crawl.FetchDelay
	ingesterCfg.MaxRetries = appCfg.Crawl.MaxRetries
	ingesterCfg.UserAgent = appCfg.Crawl.UserAgent
	ingesterCfg.AllowPatterns = appCfg.Crawl.AllowPatterns
	ingesterCfg.MinTitleLen = appCfg.Crawl.MinTitleLen
	ingesterCfg.Inbox.Enabled = appCfg.Inbox.Enabled
	ingesterCfg.Inbox.Dir = appCfg.Inbox.Dir
	ingesterJSON, err := json.Marshal(ingesterCfg)
	if err != nil {
		return nil, fmt.Errorf("marshal crawl-ingester config: %w", err)
	}

	chunkerCfg := docchunker.DefaultConfig()
	chunkerCfg.Strategy = appCfg.Chunking.Strategy
	chunkerCfg.ChunkSize = appCfg.Chunking.ChunkSize
	chunkerCfg.ChunkOverlap = appCfg.Chunking.ChunkOverlap
	chunkerCfg.MinChunkSize = appCfg.Chunking.MinChunkSize
	chunkerJSON, err := json.Marshal(chunkerCfg)
	if err != nil {
		return nil, fmt.Errorf("marshal doc-chunker config: %w", err)
	}

	return &semconfig.Config{
		Version: "1.0.0",
		Platform: semconfig.PlatformConfig{
			Org:         "lexingest",
			ID:          "lexingest-local",
			Environment: "dev",
		},
		NATS: semconfig.NATSConfig{
			URLs:          []string{appCfg.NATS.URL},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			JetStream: semconfig.JetStreamConfig{
				Enabled: true,
			},
		},
		Services: types.ServiceConfigs{},
		Components: semconfig.ComponentConfigs{
			"crawl-ingester": types.ComponentConfig{
				Name:    "crawl-ingester",
				Type:    types.ComponentTypeProcessor,
				Enabled: true,
				Config:  ingesterJSON,
			},
			"doc-chunker": types.ComponentConfig{
				Name:    "doc-chunker",
				Type:    types.ComponentTypeProcessor,
				Enabled: true,
				Config:  chunkerJSON,
			},
		},
		Streams: semconfig.StreamConfigs{
			"CRAWL": semconfig.StreamConfig{
				Subjects: []string{
					"crawl.request.>",
				},
				MaxAge:   "24h",
				Storage:  "file",
				Replicas: 1,
			},
			"DOCS": semconfig.StreamConfig{
				Subjects: []string{
					"docs.stored.>",
					"docs.chunk.>",
				},
				MaxAge:   "24h",
				Storage:  "file",
				Replicas: 1,
			},
		},
	}, nil
}

func connectToNATS(ctx context.Context, natsURL string, logger *slog.Logger) (*natsclient.Client, error) {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		natsURL = envURL
	}
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	logger.Info("Connecting to NATS", "url", natsURL)

	client, err := natsclient.NewClient(natsURL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20), // Higher threshold for startup bursts
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	logger.Info("Connected to NATS", "url", natsURL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	// Check for common connection errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

func ensureStreams(ctx context.Context, cfg *semconfig.Config, natsClient *natsclient.Client, logger *slog.Logger) error {
	logger.Debug("Creating JetStream streams")
	streamsManager := semconfig.NewStreamsManager(natsClient, logger)

	if err := streamsManager.EnsureStreams(ctx, cfg); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	logger.Debug("JetStream streams ready")
	return nil
}

func extractPlatformMeta(cfg *semconfig.Config) types.PlatformMeta {
	platformID := cfg.Platform.InstanceID
	if platformID == "" {
		platformID = cfg.Platform.ID
	}

	return types.PlatformMeta{
		Org:      cfg.Platform.Org,
		Platform: platformID,
	}
}

// ensureServiceManagerConfig ensures service-manager config exists with defaults
func ensureServiceManagerConfig(cfg *semconfig.Config) {
	if cfg.Services == nil {
		cfg.Services = make(types.ServiceConfigs)
	}

	if _, exists := cfg.Services["service-manager"]; !exists {
		slog.Debug("Adding default service-manager config")
		defaultConfig := map[string]any{
			"http_port":  8080,
			"swagger_ui": false,
			"server_info": map[string]string{
				"title":       "Lexingest API",
				"description": "legal document ingestion pipeline",
				"version":     Version,
			},
		}
		defaultConfigJSON, _ := json.Marshal(defaultConfig)
		cfg.Services["service-manager"] = types.ServiceConfig{
			Name:    "service-manager",
			Enabled: true,
			Config:  defaultConfigJSON,
		}
		slog.Debug("Service-manager config added", "enabled", true)
	}
}

// configureAndCreateServices configures the manager and creates all services
func configureAndCreateServices(
	cfg *semconfig.Config,
	manager *service.Manager,
	svcDeps *service.Dependencies,
) error {
	slog.Debug("Configuring Manager")
	if err := manager.ConfigureFromServices(cfg.Services, svcDeps); err != nil {
		return fmt.Errorf("configure service manager: %w", err)
	}

	slog.Debug("Creating services from config", "count", len(cfg.Services))
	for name, svcConfig := range cfg.Services {
		if name == "service-manager" {
			slog.Debug("Skipping service-manager (configured directly)")
			continue
		}

		if err := createServiceIfEnabled(manager, name, svcConfig, svcDeps); err != nil {
			return err
		}
	}

	return nil
}

// createServiceIfEnabled creates a service if it's enabled and registered
func createServiceIfEnabled(
	manager *service.Manager,
	name string,
	svcConfig types.ServiceConfig,
	svcDeps *service.Dependencies,
) error {
	slog.Debug("Processing service config", "key", name, "name", svcConfig.Name, "enabled", svcConfig.Enabled)

	if !svcConfig.Enabled {
		slog.Info("Service disabled in config", "name", name)
		return nil
	}

	if !manager.HasConstructor(name) {
		slog.Warn("Service configured but not registered", "key", name, "available_constructors", manager.ListConstructors())
		return nil
	}

	slog.Debug("Creating service", "name", name, "has_constructor", true)
	if _, err := manager.CreateService(name, svcConfig.Config, svcDeps); err != nil {
		return fmt.Errorf("create service %s: %w", name, err)
	}

	slog.Info("Created service", "name", name, "config_name", svcConfig.Name)
	return nil
}
