package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	docchunker "github.com/c360studio/lexingest/processor/doc-chunker"
	"github.com/c360studio/lexingest/scraper"
	"github.com/c360studio/lexingest/source"
	"github.com/c360studio/lexingest/storage"
)

// crawlCmd runs a one-shot crawl: fetch, dedup-save, and record the run
// as a crawl job, without starting the long-running service.
func crawlCmd(configPath, logLevel *string) *cobra.Command {
	var (
		letters string
		max     int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a one-shot crawl and store the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)

			appCfg, err := loadAppConfig(*configPath, logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()
			natsClient, err := connectToNATS(ctx, appCfg.NATS.URL, logger)
			if err != nil {
				return err
			}
			defer natsClient.Close(ctx)

			store, err := storage.NewStore(ctx, natsClient, storage.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("create store: %w", err)
			}

			runLetters := appCfg.Crawl.Letters
			if letters != "" {
				runLetters = splitLetters(letters)
			}

			job := storage.NewCrawlJob(runLetters, max, "cli")
			if err := store.SaveCrawlJob(ctx, job); err != nil {
				return fmt.Errorf("save crawl job: %w", err)
			}

			fetchCfg := scraper.DefaultFetchConfig()
			fetchCfg.Timeout = appCfg.Crawl.GetFetchTimeout()
			fetchCfg.Delay = appCfg.Crawl.GetFetchDelay()
			if appCfg.Crawl.MaxRetries > 0 {
				fetchCfg.MaxRetries = appCfg.Crawl.MaxRetries
			}
			if appCfg.Crawl.UserAgent != "" {
				fetchCfg.UserAgent = appCfg.Crawl.UserAgent
			}

			fetcher := scraper.NewFetcher(fetchCfg, source.NewCrawlStats(), logger)
			crawler := scraper.NewCrawler(fetcher, scraper.NewConverter(), scraper.CrawlConfig{
				IndexURLTemplate: appCfg.Crawl.IndexURLTemplate,
				MaxPerLetter:     appCfg.Crawl.MaxPerLetter,
				MinTitleLen:      appCfg.Crawl.MinTitleLen,
				AllowPatterns:    appCfg.Crawl.AllowPatterns,
			}, logger)

			docs, err := crawler.Crawl(ctx, runLetters, max)
			if err != nil {
				job.Fail(err)
				_ = store.SaveCrawlJob(ctx, job)
				return err
			}

			saveStats := store.SaveBatch(ctx, docs)
			crawlStats := crawler.Stats().Snapshot()

			job.Complete(crawlStats, saveStats)
			if err := store.SaveCrawlJob(ctx, job); err != nil {
				return fmt.Errorf("save crawl job: %w", err)
			}

			fmt.Printf("Crawl %s complete\n", job.ID)
			fmt.Printf("  Pages fetched:   %d\n", crawlStats.PagesFetched)
			fmt.Printf("  Documents found: %d\n", crawlStats.DocumentsFound)
			fmt.Printf("  Retries:         %d\n", crawlStats.Retries)
			fmt.Printf("  Errors:          %d\n", crawlStats.Errors)
			fmt.Printf("  Success rate:    %.1f%%\n", crawlStats.SuccessRate)
			fmt.Printf("  Saved:           %d\n", saveStats.Saved)
			fmt.Printf("  Duplicates:      %d\n", saveStats.Duplicates)
			fmt.Printf("  Save errors:     %d\n", saveStats.Errors)
			return nil
		},
	}

	cmd.Flags().StringVar(&letters, "letters", "", "Comma-separated partition letters (default: config letters)")
	cmd.Flags().IntVar(&max, "max", 0, "Maximum documents per letter (0 = config value)")

	return cmd
}

// processCmd chunks every stored document that has not been processed yet.
func processCmd(configPath, logLevel *string) *cobra.Command {
	var (
		strategy string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Chunk stored documents that have not been processed",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)

			appCfg, err := loadAppConfig(*configPath, logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()
			natsClient, err := connectToNATS(ctx, appCfg.NATS.URL, logger)
			if err != nil {
				return err
			}
			defer natsClient.Close(ctx)

			store, err := storage.NewStore(ctx, natsClient, storage.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("create store: %w", err)
			}

			runStrategy := appCfg.Chunking.Strategy
			if strategy != "" {
				runStrategy = strategy
			}

			handler, err := docchunker.NewHandler(store, appCfg.ChunkerConfig(), runStrategy, logger)
			if err != nil {
				return fmt.Errorf("create handler: %w", err)
			}

			pending, err := store.UnprocessedDocuments(ctx, limit)
			if err != nil {
				return fmt.Errorf("list unprocessed documents: %w", err)
			}
			if len(pending) == 0 {
				fmt.Println("No unprocessed documents.")
				return nil
			}

			processed, failed, totalChunks := 0, 0, 0
			for _, doc := range pending {
				job, err := handler.ChunkDocument(ctx, doc.ID, runStrategy)
				if err != nil {
					logger.Warn("Failed to process document", "id", doc.ID, "error", err)
					failed++
					continue
				}
				processed++
				totalChunks += job.ChunkCount
			}

			fmt.Printf("Processed %d documents (%d chunks, %d failures)\n", processed, totalChunks, failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "Chunking strategy: words or paragraphs (default: config value)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum documents to process (0 = all)")

	return cmd
}

// statusCmd prints store counts, recent documents, and recent crawl jobs.
func statusCmd(configPath, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show document store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)

			appCfg, err := loadAppConfig(*configPath, logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()
			natsClient, err := connectToNATS(ctx, appCfg.NATS.URL, logger)
			if err != nil {
				return err
			}
			defer natsClient.Close(ctx)

			store, err := storage.NewStore(ctx, natsClient, storage.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("create store: %w", err)
			}

			return printStatus(ctx, store)
		},
	}

	return cmd
}

// printStatus writes the status report for a store.
func printStatus(ctx context.Context, store *storage.Store) error {
	docCount, err := store.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	chunkCount, err := store.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	pending, err := store.UnprocessedDocuments(ctx, 0)
	if err != nil {
		return fmt.Errorf("list unprocessed documents: %w", err)
	}

	fmt.Printf("Documents:   %d\n", docCount)
	fmt.Printf("Chunks:      %d\n", chunkCount)
	fmt.Printf("Unprocessed: %d\n", len(pending))

	recent, err := store.RecentDocuments(ctx, 10)
	if err != nil {
		return fmt.Errorf("list recent documents: %w", err)
	}
	if len(recent) > 0 {
		fmt.Println("\nRecent documents:")
		for _, doc := range recent {
			fmt.Printf("  %-10s %s (%s)\n", doc.DocType, doc.Title, doc.CreatedAt.Format("2006-01-02 15:04"))
		}
	}

	jobs, err := store.RecentCrawlJobs(ctx, 5)
	if err != nil {
		return fmt.Errorf("list crawl jobs: %w", err)
	}
	if len(jobs) > 0 {
		fmt.Println("\nRecent crawl jobs:")
		for _, job := range jobs {
			fmt.Printf("  %s %-9s saved=%d dup=%d errors=%d (%s)\n",
				job.ID[:8], job.Status,
				job.SaveStats.Saved, job.SaveStats.Duplicates, job.SaveStats.Errors,
				job.StartedAt.Format("2006-01-02 15:04"))
		}
	}

	return nil
}

// splitLetters parses a comma-separated letters flag.
func splitLetters(s string) []string {
	var letters []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			letters = append(letters, part)
		}
	}
	return letters
}
