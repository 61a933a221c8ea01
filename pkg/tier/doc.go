// Package tier resolves principals to subscription tiers and looks up the
// rate-limit policy governing a (tier, path) pair. The policy table is
// compiled once from configuration and is immutable afterwards.
package tier
