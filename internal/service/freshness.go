package service

import (
	"time"

	"github.com/insights-engine/internal/types"
)

// FreshnessDecision is the outcome of the cache freshness check
type FreshnessDecision int

const (
	// ServeCached means the stored row is fresh enough to return as-is
	ServeCached FreshnessDecision = iota
	// Refetch means the row is missing or stale and a sync is needed
	Refetch
)

func (d FreshnessDecision) String() string {
	if d == ServeCached {
		return "serve_cached"
	}
	return "refetch"
}

// FreshnessPolicy decides serve-cached vs refetch from timestamps alone.
// It performs no I/O.
type FreshnessPolicy struct {
	ttl time.Duration
}

// NewFreshnessPolicy creates a policy with the given TTL for same-day rows
func NewFreshnessPolicy(ttl time.Duration) *FreshnessPolicy {
	return &FreshnessPolicy{ttl: ttl}
}

// Decide applies the freshness rules for one requested calendar date.
// cachedAt is the fetch time of the stored row for that date, nil when no
// row exists. Past, fully-elapsed days cannot change, so an existing row
// for them is always served. The force flag bypasses the TTL check for
// today only; it never forces a refetch of a past day.
func (p *FreshnessPolicy) Decide(requested, now time.Time, cachedAt *time.Time, force bool) FreshnessDecision {
	if cachedAt == nil {
		return Refetch
	}
	if !types.SameDay(requested, now) {
		return ServeCached
	}
	if force {
		return Refetch
	}
	if now.Sub(*cachedAt) <= p.ttl {
		return ServeCached
	}
	return Refetch
}

// DecideWindow applies Decide across a date window: the window needs a
// refetch when any day inside it does. cachedAt is the newest fetch time
// among the window's stored rows; covered is how many of the window's
// days have a stored row.
func (p *FreshnessPolicy) DecideWindow(window types.DateWindow, now time.Time, cachedAt *time.Time, covered int, force bool) FreshnessDecision {
	if covered < window.Days() {
		// Holes in a past window stay holes upstream too, but retrying
		// costs one sync and may fill days added since the last run.
		if window.Contains(now) || covered == 0 {
			return Refetch
		}
	}
	if !window.Contains(now) {
		return ServeCached
	}
	return p.Decide(types.TruncateDay(now), now, cachedAt, force)
}
