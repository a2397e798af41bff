package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/clientdata"
	"github.com/aristath/rebalancer/internal/clients/exchangerate"
	"github.com/aristath/rebalancer/internal/clients/yahoo"
	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/events"
	"github.com/aristath/rebalancer/internal/modules/optimization"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/aristath/rebalancer/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates the event bus, market data clients, repositories
// and services, then loads the stored portfolio.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())

	rateOpts := []exchangerate.Option{
		exchangerate.WithBaseURL(cfg.ExchangeRateAPIURL),
		exchangerate.WithTTL(cfg.RateTTL),
	}
	priceOpts := []yahoo.Option{
		yahoo.WithTTL(cfg.PriceTTL),
		yahoo.WithRetries(cfg.PriceMaxRetries, time.Second),
	}
	if cfg.OfflineMode {
		rateOpts = append(rateOpts, exchangerate.WithOffline())
		priceOpts = append(priceOpts, yahoo.WithOffline())
		log.Warn().Msg("Offline mode: market data is served from the cache only")
	}

	rates := exchangerate.NewClient(container.ClientDataRepo, log, rateOpts...)
	container.Rates = rates
	container.RateRefresher = rates
	container.Prices = yahoo.NewClient(container.ClientDataRepo, log, priceOpts...)

	container.PortfolioRepo = portfolio.NewRepository(container.PortfolioDB.Conn(), log)
	container.HistoryRepo = rebalancing.NewHistoryRepository(container.HistoryDB.Conn(), log)

	container.PortfolioService = portfolio.NewService(
		container.PortfolioRepo,
		container.Prices,
		container.Rates,
		container.EventManager,
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := container.PortfolioService.Init(ctx); err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}

	rebalancer := rebalancing.NewRebalancer(optimization.NewRebalanceOptimizer(log), log)
	container.RebalancingService = rebalancing.NewService(
		container.PortfolioService,
		rebalancer,
		container.HistoryRepo,
		container.EventManager,
		log,
	)

	container.BackupService = reliability.NewBackupService(log, container.Databases()...)
	if cfg.R2Enabled() {
		r2Client, err := reliability.NewR2Client(ctx, cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2Bucket, log)
		if err != nil {
			return fmt.Errorf("failed to create r2 client: %w", err)
		}
		container.R2BackupService = reliability.NewR2BackupService(r2Client, container.BackupService, cfg.DataDir, log)
	}

	log.Info().
		Bool("offline", cfg.OfflineMode).
		Bool("r2_backups", container.R2BackupService != nil).
		Msg("Services initialized")
	return nil
}
