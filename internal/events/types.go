// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	// Portfolio state
	PortfolioChanged EventType = "PORTFOLIO_CHANGED"
	CashUpdated      EventType = "CASH_UPDATED"
	AssetAdded       EventType = "ASSET_ADDED"
	SettingsChanged  EventType = "SETTINGS_CHANGED"

	// Rebalancing
	RebalanceStateChanged EventType = "REBALANCE_STATE_CHANGED"
	RebalanceCompleted    EventType = "REBALANCE_COMPLETED"
	RebalanceFailed       EventType = "REBALANCE_FAILED"
	CurrencyExchanged     EventType = "CURRENCY_EXCHANGED"

	// Background jobs
	RatesSynced     EventType = "RATES_SYNCED"
	CacheCleaned    EventType = "CACHE_CLEANED"
	BackupCompleted EventType = "BACKUP_COMPLETED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type, used by subscribers that want everything
var AllEventTypes = []EventType{
	PortfolioChanged,
	CashUpdated,
	AssetAdded,
	SettingsChanged,
	RebalanceStateChanged,
	RebalanceCompleted,
	RebalanceFailed,
	CurrencyExchanged,
	RatesSynced,
	CacheCleaned,
	BackupCompleted,
	ErrorOccurred,
}
