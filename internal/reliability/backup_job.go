package reliability

import (
	"context"
	"time"

	"github.com/aristath/rebalancer/internal/events"
	"github.com/rs/zerolog"
)

// BackupJob uploads a fresh archive and rotates old ones
type BackupJob struct {
	service       *R2BackupService
	retentionDays int
	events        *events.Manager
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates the scheduled backup job
func NewBackupJob(service *R2BackupService, retentionDays int, eventManager *events.Manager, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		events:        eventManager,
		timeout:       10 * time.Minute,
		log:           log.With().Str("job", "r2_backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "r2_backup"
}

// Run uploads the archive first; a rotation failure does not fail the job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.service.CreateAndUploadBackup(ctx)
	if err != nil {
		return err
	}

	deleted, err := j.service.RotateOldBackups(ctx, j.retentionDays)
	if err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.events.EmitTyped("reliability", &events.BackupCompletedData{
		Archive:   result.Archive,
		SizeBytes: result.SizeBytes,
		Databases: result.Databases,
		Rotated:   deleted,
	})
	return nil
}
