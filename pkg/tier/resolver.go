package tier

import (
	"time"

	"helios-hq/aegis/pkg/config"
)

// Principal is an authenticated caller as seen by the admission layer.
// Auth is an external collaborator; the core only reads these fields.
type Principal struct {
	// ID uniquely identifies the caller (user ID, API key hash, or a
	// client address for anonymous traffic).
	ID string

	// Tier is the caller's subscription tier. Empty means the caller has
	// no configured tier and the resolver's default applies.
	Tier string
}

// Anonymous builds a Principal for an unauthenticated caller.
func Anonymous(id string) Principal {
	return Principal{ID: id}
}

// Policy is a rate-limit policy: at most Limit requests per Window.
// Source is the path pattern that produced the policy, or "default" for a
// tier-wide fallback; limiter buckets are keyed by it so all paths under
// one pattern share a window.
type Policy struct {
	Limit  int64
	Window time.Duration
	Source string
}

// tierEntry holds the compiled policy table for one tier.
type tierEntry struct {
	// fallback applies when no path pattern matches. Nil means the tier
	// has no tier-wide default.
	fallback *Policy

	// paths maps glob patterns to path-specific policies.
	paths map[string]Policy
}

// Resolver maps principals to tiers and (tier, path) pairs to policies.
//
// A Resolver is immutable after construction. Configuration reloads build a
// new Resolver and swap it in at the call site rather than mutating shared
// state.
type Resolver struct {
	defaultTier string
	tiers       map[string]tierEntry
}

// NewResolver compiles the admission configuration into a resolver.
func NewResolver(cfg *config.AdmissionConfig) *Resolver {
	r := &Resolver{
		defaultTier: cfg.DefaultTier,
		tiers:       make(map[string]tierEntry, len(cfg.Tiers)),
	}

	for name, tc := range cfg.Tiers {
		entry := tierEntry{paths: make(map[string]Policy, len(tc.Paths))}
		if tc.Default != nil {
			entry.fallback = &Policy{
				Limit:  tc.Default.Limit,
				Window: tc.Default.Window,
				Source: "default",
			}
		}
		for pattern, pc := range tc.Paths {
			entry.paths[pattern] = Policy{
				Limit:  pc.Limit,
				Window: pc.Window,
				Source: pattern,
			}
		}
		r.tiers[name] = entry
	}
	return r
}

// ResolveTier returns the principal's tier, or the process-wide default
// when the principal has none.
func (r *Resolver) ResolveTier(p Principal) string {
	if p.Tier != "" {
		return p.Tier
	}
	return r.defaultTier
}

// PolicyFor returns the policy governing path for the given tier.
//
// The most specific matching path pattern wins: an exact match beats any
// glob, and among globs the longest pattern wins. When no pattern matches,
// the tier-wide default applies. The second return is false when the tier
// has no applicable policy at all; the caller decides whether that means
// unlimited or a global default.
func (r *Resolver) PolicyFor(tierID, path string) (Policy, bool) {
	entry, ok := r.tiers[tierID]
	if !ok {
		return Policy{}, false
	}

	if p, ok := entry.paths[path]; ok {
		return p, true
	}

	var (
		best    Policy
		bestLen = -1
	)
	for pattern, p := range entry.paths {
		if Match(pattern, path) && len(pattern) > bestLen {
			best = p
			bestLen = len(pattern)
		}
	}
	if bestLen >= 0 {
		return best, true
	}

	if entry.fallback != nil {
		return *entry.fallback, true
	}
	return Policy{}, false
}

// Tiers returns the names of all configured tiers. Useful for validation
// and metrics label pre-registration.
func (r *Resolver) Tiers() []string {
	names := make([]string, 0, len(r.tiers))
	for name := range r.tiers {
		names = append(names, name)
	}
	return names
}
