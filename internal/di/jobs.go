package di

import (
	"fmt"

	"github.com/aristath/rebalancer/internal/clientdata"
	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/reliability"
	"github.com/aristath/rebalancer/internal/scheduler"
	"github.com/rs/zerolog"
)

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates the background jobs and schedules them. The
// scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)

	jobs := &JobInstances{
		SyncRates: scheduler.NewSyncRatesJob(
			container.RateRefresher,
			syncCurrencies(container, cfg.RateSyncCurrencies),
			container.EventManager,
			log,
		),
		CacheCleanup:   clientdata.NewCleanupJob(container.ClientDataRepo, container.EventManager, log),
		CheckDatabases: scheduler.NewCheckDatabasesJob(log, container.Databases()...),
	}

	if container.R2BackupService != nil {
		jobs.Backup = reliability.NewBackupJob(container.R2BackupService, cfg.BackupRetentionDays, container.EventManager, log)
	}

	schedules := []scheduledJob{
		{cfg.RateSyncSchedule, jobs.SyncRates},
		{cfg.CacheCleanupSchedule, jobs.CacheCleanup},
		{cfg.DatabaseCheckSchedule, jobs.CheckDatabases},
	}
	if jobs.Backup != nil {
		schedules = append(schedules, scheduledJob{cfg.BackupSchedule, jobs.Backup})
	}
	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", s.job.Name(), err)
		}
	}

	return jobs, nil
}

// syncCurrencies returns the live portfolio's currencies followed by the
// configured extras, without duplicates
func syncCurrencies(container *Container, extra []string) func() []string {
	return func() []string {
		seen := make(map[string]bool)
		var out []string
		add := func(currency string) {
			currency = domain.NormalizeCurrency(currency)
			if currency != "" && !seen[currency] {
				seen[currency] = true
				out = append(out, currency)
			}
		}
		for _, currency := range container.PortfolioService.Snapshot().Currencies() {
			add(currency)
		}
		for _, currency := range extra {
			add(currency)
		}
		return out
	}
}
