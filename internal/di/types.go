// Package di wires databases, market data clients, services and jobs into
// a single Container.
package di

import (
	"github.com/aristath/rebalancer/internal/clientdata"
	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/aristath/rebalancer/internal/reliability"
	"github.com/aristath/rebalancer/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire() and handed to the server and main.
type Container struct {
	// Databases
	PortfolioDB *database.DB // Live portfolio state (holdings, cash pools, settings)
	HistoryDB   *database.DB // Append-only rebalance runs
	CacheDB     *database.DB // Cached exchange rates and prices

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Market data
	ClientDataRepo *clientdata.Repository
	Prices         domain.PriceProvider
	Rates          domain.RateProvider
	RateRefresher  scheduler.RateRefresher

	// Repositories
	PortfolioRepo *portfolio.Repository
	HistoryRepo   *rebalancing.HistoryRepository

	// Services
	PortfolioService   *portfolio.Service
	RebalancingService *rebalancing.Service

	// Backups; R2BackupService is nil unless R2 is configured
	BackupService   *reliability.BackupService
	R2BackupService *reliability.R2BackupService

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs
type JobInstances struct {
	SyncRates      scheduler.Job
	CacheCleanup   scheduler.Job
	CheckDatabases scheduler.Job
	Backup         scheduler.Job // nil when backups are disabled
}

// All returns every job, for manual triggering through the API
func (j *JobInstances) All() []scheduler.Job {
	if j == nil {
		return nil
	}
	var out []scheduler.Job
	for _, job := range []scheduler.Job{j.SyncRates, j.CacheCleanup, j.CheckDatabases, j.Backup} {
		if job != nil {
			out = append(out, job)
		}
	}
	return out
}

// Databases returns every open database
func (c *Container) Databases() []*database.DB {
	var out []*database.DB
	for _, db := range []*database.DB{c.PortfolioDB, c.HistoryDB, c.CacheDB} {
		if db != nil {
			out = append(out, db)
		}
	}
	return out
}

// Close closes every open database
func (c *Container) Close() {
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
