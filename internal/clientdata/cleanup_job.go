package clientdata

import (
	"context"
	"time"

	"github.com/aristath/rebalancer/internal/events"
	"github.com/rs/zerolog"
)

// CleanupJob removes expired entries from every cache table
type CleanupJob struct {
	repo    *Repository
	events  *events.Manager
	timeout time.Duration
	log     zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job; eventManager may be nil
func NewCleanupJob(repo *Repository, eventManager *events.Manager, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:    repo,
		events:  eventManager,
		timeout: time.Minute,
		log:     log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Name returns the job name for scheduling and logging
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}

// Run deletes expired entries and reports what was removed
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results, err := j.repo.DeleteAllExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired client data")
		return err
	}

	var total int64
	deleted := make(map[string]int64, len(results))
	for table, count := range results {
		deleted[string(table)] = count
		total += count
		if count > 0 {
			j.log.Debug().Str("table", string(table)).Int64("deleted", count).Msg("Removed expired cache entries")
		}
	}

	if total > 0 {
		j.log.Info().Int64("total_deleted", total).Msg("Client data cleanup completed")
	}
	j.events.EmitTyped("clientdata", &events.CacheCleanedData{
		Deleted: deleted,
		Total:   total,
	})
	return nil
}
