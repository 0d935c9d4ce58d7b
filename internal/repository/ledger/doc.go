// Package ledger records short-lived exclusive claims on alarm
// instants. A claim means "some replica is delivering this reminder";
// its TTL-based expiry, not any delete call, is what releases it, so a
// crashed worker frees its claims automatically.
package ledger
