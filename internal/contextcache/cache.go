package contextcache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/odslabs/ridebot/internal/riders"
)

const defaultFetchTimeout = 10 * time.Second

// Cache refreshes rider context snapshots on demand. It holds no snapshot
// state of its own: the caller owns the snapshot (typically persisted with
// the conversation checkpoint) and passes it in; the cache decides whether a
// refresh cycle is due, runs the four fetches concurrently, and merges the
// results.
type Cache struct {
	source       riders.ContextSource
	policy       Policy
	fetchTimeout time.Duration
	now          func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetchTimeout bounds each individual fetch. A fetch that exceeds the
// bound counts as a failed fetch under the merge rule, not a crash.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

// WithClock replaces the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) { c.now = clock }
}

// New creates a context cache over the given source.
func New(source riders.ContextSource, policy Policy, opts ...Option) *Cache {
	c := &Cache{
		source:       source,
		policy:       policy,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrRefresh returns an up-to-date snapshot for the rider. If the snapshot
// is fresh under the policy it is returned unchanged and no fetch is issued.
// Otherwise all four fetches run concurrently; per field, a successful fetch
// replaces the old value while NotFound and failures leave it untouched and
// are reported as warnings. The cycle never fails as a whole: the only error
// returned is a rejected rider id, raised before any fetch.
func (c *Cache) GetOrRefresh(ctx context.Context, riderID int64, snap Snapshot) (Snapshot, []string, error) {
	if err := riders.ValidateRiderID(riderID); err != nil {
		return snap, nil, err
	}

	now := c.now()
	if !c.policy.RefreshDue(snap.LastRefreshed, now) {
		return snap, nil, nil
	}

	var (
		profile  riders.Result[*riders.Rider]
		trips    riders.Result[[]riders.Trip]
		shift    riders.Result[*riders.Shift]
		location riders.Result[*riders.LocationFix]
	)

	// The four fetches are siblings: all run, all complete, partial failure
	// is tolerated. No fetch aborts the others.
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		profile = fetchBounded(ctx, c.fetchTimeout, riderID, c.source.Profile)
	}()
	go func() {
		defer wg.Done()
		trips = fetchBounded(ctx, c.fetchTimeout, riderID, c.source.ActiveTrips)
	}()
	go func() {
		defer wg.Done()
		shift = fetchBounded(ctx, c.fetchTimeout, riderID, c.source.ActiveShift)
	}()
	go func() {
		defer wg.Done()
		location = fetchBounded(ctx, c.fetchTimeout, riderID, c.source.Location)
	}()
	wg.Wait()

	var warnings []string
	anyOK := false

	if profile.Status == riders.StatusOK {
		snap.Rider = profile.Value
		anyOK = true
	} else {
		warnings = append(warnings, warning("profile", profile.Status, profile.Err))
	}
	if trips.Status == riders.StatusOK {
		snap.Trips = trips.Value
		anyOK = true
	} else {
		warnings = append(warnings, warning("trips", trips.Status, trips.Err))
	}
	if shift.Status == riders.StatusOK {
		snap.Shift = shift.Value
		anyOK = true
	} else {
		warnings = append(warnings, warning("shift", shift.Status, shift.Err))
	}
	if location.Status == riders.StatusOK {
		snap.Location = location.Value
		anyOK = true
	} else {
		warnings = append(warnings, warning("location", location.Status, location.Err))
	}

	// NotFound is a definitive answer, so it still counts as the cycle
	// having reached the sources.
	anyAnswered := anyOK ||
		profile.Status == riders.StatusNotFound || trips.Status == riders.StatusNotFound ||
		shift.Status == riders.StatusNotFound || location.Status == riders.StatusNotFound

	if anyAnswered || c.policy.BackoffOnFailure {
		snap.LastRefreshed = now
	} else {
		log.Printf("contextcache: rider %d: all fetches failed, keeping last_refreshed for retry", riderID)
	}

	for _, w := range warnings {
		log.Printf("contextcache: rider %d: %s", riderID, w)
	}

	return snap, warnings, nil
}

// fetchBounded runs one fetch under its own deadline. A deadline overrun
// surfaces as a failed result via the source honoring ctx, or is forced here
// if the source returned success after cancellation.
func fetchBounded[T any](ctx context.Context, timeout time.Duration, riderID int64, fetch func(context.Context, int64) riders.Result[T]) riders.Result[T] {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := fetch(fctx, riderID)
	if res.Status == riders.StatusOK && fctx.Err() != nil {
		return riders.Failed[T](fmt.Errorf("fetch timed out: %w", fctx.Err()))
	}
	return res
}

func warning(field string, status riders.Status, err error) string {
	if err != nil {
		return fmt.Sprintf("%s fetch failed: %v", field, err)
	}
	return fmt.Sprintf("%s: %s, keeping previous value", field, status)
}
