package clientdata

import "time"

// Default lifetimes of cached entries; both are overridable through config.
const (
	TTLExchangeRate = time.Hour
	TTLCurrentPrice = 10 * time.Minute
)
