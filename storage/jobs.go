package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/lexingest/source"
)

// Job status values.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job key prefixes inside the jobs bucket.
const (
	crawlJobPrefix      = "crawl."
	processingJobPrefix = "proc."
)

// CrawlJob records one crawl run: its parameters, outcome, and the
// statistics accumulated while it ran.
type CrawlJob struct {
	ID           string                    `json:"id"`
	Letters      []string                  `json:"letters"`
	MaxPerLetter int                       `json:"max_per_letter"`
	RequestedBy  string                    `json:"requested_by,omitempty"`
	Status       string                    `json:"status"`
	Stats        source.CrawlStatsSnapshot `json:"stats"`
	SaveStats    source.BatchSaveStats     `json:"save_stats"`
	Error        string                    `json:"error,omitempty"`
	StartedAt    time.Time                 `json:"started_at"`
	CompletedAt  time.Time                 `json:"completed_at,omitzero"`
}

// ProcessingJob records one chunking run over a stored document.
type ProcessingJob struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Strategy    string    `json:"strategy"`
	ChunkCount  int       `json:"chunk_count"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// NewCrawlJob creates a running crawl job record.
func NewCrawlJob(letters []string, maxPerLetter int, requestedBy string) *CrawlJob {
	return &CrawlJob{
		ID:           uuid.NewString(),
		Letters:      letters,
		MaxPerLetter: maxPerLetter,
		RequestedBy:  requestedBy,
		Status:       JobStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
}

// NewProcessingJob creates a running processing job record.
func NewProcessingJob(documentID, strategy string) *ProcessingJob {
	return &ProcessingJob{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Strategy:   strategy,
		Status:     JobStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
}

// Complete marks the job finished with its final statistics.
func (j *CrawlJob) Complete(stats source.CrawlStatsSnapshot, saveStats source.BatchSaveStats) {
	j.Status = JobStatusCompleted
	j.Stats = stats
	j.SaveStats = saveStats
	j.CompletedAt = time.Now().UTC()
}

// Fail marks the job failed with the given error.
func (j *CrawlJob) Fail(err error) {
	j.Status = JobStatusFailed
	j.Error = err.Error()
	j.CompletedAt = time.Now().UTC()
}

// Complete marks the job finished with the chunk count it produced.
func (j *ProcessingJob) Complete(chunkCount int) {
	j.Status = JobStatusCompleted
	j.ChunkCount = chunkCount
	j.CompletedAt = time.Now().UTC()
}

// Fail marks the job failed with the given error.
func (j *ProcessingJob) Fail(err error) {
	j.Status = JobStatusFailed
	j.Error = err.Error()
	j.CompletedAt = time.Now().UTC()
}

// SaveCrawlJob persists a crawl job record.
func (s *Store) SaveCrawlJob(ctx context.Context, job *CrawlJob) error {
	return s.putJob(ctx, crawlJobPrefix+job.ID, job)
}

// GetCrawlJob retrieves a crawl job by ID.
func (s *Store) GetCrawlJob(ctx context.Context, id string) (*CrawlJob, error) {
	var job CrawlJob
	if err := s.getJob(ctx, crawlJobPrefix+id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// SaveProcessingJob persists a processing job record.
func (s *Store) SaveProcessingJob(ctx context.Context, job *ProcessingJob) error {
	return s.putJob(ctx, processingJobPrefix+job.ID, job)
}

// GetProcessingJob retrieves a processing job by ID.
func (s *Store) GetProcessingJob(ctx context.Context, id string) (*ProcessingJob, error) {
	var job ProcessingJob
	if err := s.getJob(ctx, processingJobPrefix+id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// RecentCrawlJobs returns up to limit crawl jobs, newest first.
func (s *Store) RecentCrawlJobs(ctx context.Context, limit int) ([]CrawlJob, error) {
	keys, err := s.jobs.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list job keys: %w", err)
	}

	var jobs []CrawlJob
	for _, key := range keys {
		if !strings.HasPrefix(key, crawlJobPrefix) {
			continue
		}
		var job CrawlJob
		if err := s.getJob(ctx, key, &job); err != nil {
			s.logger.Warn("Failed to load crawl job", "key", key, "error", err)
			continue
		}
		jobs = append(jobs, job)
	}

	// Newest first; job IDs are random so only timestamps order them.
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *Store) putJob(ctx context.Context, key string, job any) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if _, err := s.jobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put job: %w", err)
	}
	return nil
}

func (s *Store) getJob(ctx context.Context, key string, job any) error {
	entry, err := s.jobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get job: %w", err)
	}
	if err := json.Unmarshal(entry.Value(), job); err != nil {
		return fmt.Errorf("unmarshal job: %w", err)
	}
	return nil
}
