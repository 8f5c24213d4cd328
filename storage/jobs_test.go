package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/lexingest/source"
)

func TestNewCrawlJob(t *testing.T) {
	job := NewCrawlJob([]string{"A", "B"}, 50, "cli")

	require.NotEmpty(t, job.ID)
	assert.Equal(t, []string{"A", "B"}, job.Letters)
	assert.Equal(t, 50, job.MaxPerLetter)
	assert.Equal(t, "cli", job.RequestedBy)
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.False(t, job.StartedAt.IsZero())
	assert.True(t, job.CompletedAt.IsZero())
	assert.Empty(t, job.Error)

	// IDs are unique per job.
	other := NewCrawlJob([]string{"A"}, 0, "")
	assert.NotEqual(t, job.ID, other.ID)
}

func TestCrawlJob_Complete(t *testing.T) {
	job := NewCrawlJob([]string{"A"}, 0, "cli")

	stats := source.CrawlStatsSnapshot{PagesFetched: 10, DocumentsFound: 25}
	saveStats := source.BatchSaveStats{Saved: 8, Duplicates: 2}
	job.Complete(stats, saveStats)

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, stats, job.Stats)
	assert.Equal(t, saveStats, job.SaveStats)
	assert.False(t, job.CompletedAt.IsZero())
	assert.Empty(t, job.Error)
}

func TestCrawlJob_Fail(t *testing.T) {
	job := NewCrawlJob([]string{"A"}, 0, "cli")
	job.Fail(errors.New("index page unreachable"))

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "index page unreachable", job.Error)
	assert.False(t, job.CompletedAt.IsZero())
}

func TestNewProcessingJob(t *testing.T) {
	job := NewProcessingJob("doc.example-com-page", "paragraphs")

	require.NotEmpty(t, job.ID)
	assert.Equal(t, "doc.example-com-page", job.DocumentID)
	assert.Equal(t, "paragraphs", job.Strategy)
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.Zero(t, job.ChunkCount)
	assert.False(t, job.StartedAt.IsZero())
	assert.True(t, job.CompletedAt.IsZero())
}

func TestProcessingJob_Complete(t *testing.T) {
	job := NewProcessingJob("doc.example-com-page", "words")
	job.Complete(12)

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 12, job.ChunkCount)
	assert.False(t, job.CompletedAt.IsZero())
}

func TestProcessingJob_Fail(t *testing.T) {
	job := NewProcessingJob("doc.example-com-page", "words")
	job.Fail(errors.New("record not found"))

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "record not found", job.Error)
	assert.Zero(t, job.ChunkCount)
}
