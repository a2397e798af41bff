package di

import (
	"fmt"

	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the three databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	stores := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		// portfolio.db - live portfolio between runs
		{database.NamePortfolio, database.ProfileStandard, &container.PortfolioDB},
		// history.db - rebalance runs, never rewritten
		{database.NameHistory, database.ProfileLedger, &container.HistoryDB},
		// cache.db - market data, safe to lose
		{database.NameCache, database.ProfileCache, &container.CacheDB},
	}

	for _, store := range stores {
		db, err := database.New(database.Config{
			Path:    cfg.DatabasePath(store.name),
			Profile: store.profile,
			Name:    store.name,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", store.name, err)
		}
		*store.target = db

		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", store.name, err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("All databases initialized and schemas applied")
	return container, nil
}
