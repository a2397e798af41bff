package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/rs/zerolog"
)

// CheckDatabasesJob runs health checks on every database and checkpoints
// their write-ahead logs.
type CheckDatabasesJob struct {
	databases []*database.DB
	timeout   time.Duration
	log       zerolog.Logger
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob; nil entries are skipped
func NewCheckDatabasesJob(log zerolog.Logger, databases ...*database.DB) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		databases: databases,
		timeout:   30 * time.Second,
		log:       log.With().Str("job", "check_databases").Logger(),
	}
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run checks each database. A failed health check fails the job; a failed
// checkpoint is only logged.
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			return fmt.Errorf("database %s is unhealthy: %w", db.Name(), err)
		}

		if err := db.WALCheckpoint("PASSIVE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
		checked++
	}

	j.log.Debug().Int("checked", checked).Msg("Database check completed")
	return nil
}
