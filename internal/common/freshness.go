package common

import "time"

// Freshness TTLs for cached data
const (
	// FreshnessPriceSync bounds how often the scheduler re-checks a symbol
	// whose last sync already reached yesterday.
	FreshnessPriceSync = 1 * time.Hour
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
