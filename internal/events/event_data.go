package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// PortfolioChangedData contains data for PortfolioChanged events
type PortfolioChangedData struct {
	Reason string `json:"reason"`
	Assets int    `json:"assets"`
	Pools  int    `json:"cash_pools"`
}

// EventType returns the event type for PortfolioChangedData
func (d *PortfolioChangedData) EventType() EventType {
	return PortfolioChanged
}

// CashUpdatedData contains data for CashUpdated events
type CashUpdatedData struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
	Balance  float64 `json:"balance"`
}

// EventType returns the event type for CashUpdatedData
func (d *CashUpdatedData) EventType() EventType {
	return CashUpdated
}

// AssetAddedData contains data for AssetAdded events
type AssetAddedData struct {
	Ticker   string  `json:"ticker"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// EventType returns the event type for AssetAddedData
func (d *AssetAddedData) EventType() EventType {
	return AssetAdded
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// RebalanceStateChangedData contains data for RebalanceStateChanged events
type RebalanceStateChangedData struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

// EventType returns the event type for RebalanceStateChangedData
func (d *RebalanceStateChangedData) EventType() EventType {
	return RebalanceStateChanged
}

// RebalanceCompletedData contains data for RebalanceCompleted events
type RebalanceCompletedData struct {
	RunID          string         `json:"run_id"`
	DryRun         bool           `json:"dry_run"`
	CommonCurrency string         `json:"common_currency"`
	NewUnits       map[string]int `json:"new_units"`
	Exchanges      int            `json:"exchanges"`
	MaxDeviation   float64        `json:"max_allocation_deviation"`
}

// EventType returns the event type for RebalanceCompletedData
func (d *RebalanceCompletedData) EventType() EventType {
	return RebalanceCompleted
}

// RebalanceFailedData contains data for RebalanceFailed events
type RebalanceFailedData struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
	Error string `json:"error"`
}

// EventType returns the event type for RebalanceFailedData
func (d *RebalanceFailedData) EventType() EventType {
	return RebalanceFailed
}

// CurrencyExchangedData contains data for CurrencyExchanged events
type CurrencyExchangedData struct {
	FromAmount   float64 `json:"from_amount"`
	FromCurrency string  `json:"from_currency"`
	ToAmount     float64 `json:"to_amount"`
	ToCurrency   string  `json:"to_currency"`
	Rate         float64 `json:"rate"`
}

// EventType returns the event type for CurrencyExchangedData
func (d *CurrencyExchangedData) EventType() EventType {
	return CurrencyExchanged
}

// RatesSyncedData contains data for RatesSynced events
type RatesSyncedData struct {
	Pairs  int `json:"pairs"`
	Errors int `json:"errors"`
}

// EventType returns the event type for RatesSyncedData
func (d *RatesSyncedData) EventType() EventType {
	return RatesSynced
}

// CacheCleanedData contains data for CacheCleaned events
type CacheCleanedData struct {
	Deleted map[string]int64 `json:"deleted"`
	Total   int64            `json:"total"`
}

// EventType returns the event type for CacheCleanedData
func (d *CacheCleanedData) EventType() EventType {
	return CacheCleaned
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
	Databases int    `json:"databases"`
	Rotated   int    `json:"rotated"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
