package contextcache

import (
	"time"

	"github.com/odslabs/ridebot/internal/riders"
)

// Snapshot is the best-known bundle of operational facts about a rider. Each
// field is optional: a nil field has never been fetched successfully (or the
// rider genuinely has no such record). Once populated, a field is only ever
// replaced by a newer successful fetch, never cleared by a failed one.
type Snapshot struct {
	Rider         *riders.Rider       `json:"rider,omitempty"`
	Trips         []riders.Trip       `json:"trips,omitempty"`
	Shift         *riders.Shift       `json:"shift,omitempty"`
	Location      *riders.LocationFix `json:"location,omitempty"`
	LastRefreshed time.Time           `json:"last_refreshed"`
}

// Empty reports whether no field has ever been populated.
func (s Snapshot) Empty() bool {
	return s.Rider == nil && s.Trips == nil && s.Shift == nil && s.Location == nil
}

// Policy decides when a snapshot is stale enough to refresh. Threshold is
// configuration, not mutable state: the zero time always triggers a refresh.
type Policy struct {
	// Threshold is the maximum snapshot age before a refresh is attempted.
	Threshold time.Duration

	// BackoffOnFailure controls whether LastRefreshed advances even when
	// every fetch in a cycle failed. Advancing caps retries at one cycle per
	// threshold interval, throttling persistently failing sources. Not
	// advancing retries on the very next turn, which recovers faster from a
	// transient outage but hammers a source that is down for good.
	BackoffOnFailure bool
}

// RefreshDue reports whether a snapshot refreshed at last is due for another
// refresh at now.
func (p Policy) RefreshDue(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > p.Threshold
}
