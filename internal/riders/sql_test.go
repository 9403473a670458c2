package riders

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// fleetSchema mirrors the slice of the fleet replica the source reads.
const fleetSchema = `
CREATE TABLE riders (
	id INTEGER PRIMARY KEY,
	full_name TEXT NOT NULL,
	vehicle_id INTEGER NOT NULL,
	vehicle_name TEXT NOT NULL,
	tax_condition_id INTEGER NOT NULL,
	tax_condition_name TEXT NOT NULL,
	tax_id TEXT NOT NULL,
	bank_account TEXT NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	modality TEXT NOT NULL
);

CREATE TABLE trips (
	id INTEGER PRIMARY KEY,
	shift_id INTEGER NOT NULL,
	rider_id INTEGER,
	origin_address TEXT NOT NULL,
	dest_address TEXT NOT NULL,
	origin_latitude REAL NOT NULL,
	origin_longitude REAL NOT NULL,
	dest_latitude REAL NOT NULL,
	dest_longitude REAL NOT NULL,
	pickup_distance_km REAL NOT NULL,
	delivery_distance_km REAL NOT NULL,
	status_id INTEGER NOT NULL,
	status_name TEXT NOT NULL,
	assigned_at TIMESTAMP,
	delivered_at TIMESTAMP,
	cancelled_at TIMESTAMP,
	delivery_failed INTEGER NOT NULL DEFAULT 0,
	cancel_reason TEXT
);

CREATE TABLE shifts (
	id INTEGER PRIMARY KEY,
	rider_id INTEGER NOT NULL,
	starts_at TIMESTAMP NOT NULL,
	ends_at TIMESTAMP NOT NULL,
	arrived_at TIMESTAMP,
	vehicle_id INTEGER NOT NULL,
	vehicle_name TEXT NOT NULL,
	auto_accept INTEGER NOT NULL,
	available INTEGER NOT NULL,
	delivered_trips INTEGER NOT NULL,
	rejections INTEGER NOT NULL,
	max_rejections INTEGER NOT NULL,
	min_trips_guaranteed INTEGER NOT NULL,
	meets_min_trips INTEGER NOT NULL,
	meets_rejection_limit INTEGER NOT NULL,
	meets_punctuality INTEGER NOT NULL,
	minutes_offline INTEGER NOT NULL,
	max_minutes_offline INTEGER NOT NULL,
	meets_connection INTEGER NOT NULL,
	guaranteed_earnings REAL NOT NULL
);

CREATE TABLE rider_locations (
	rider_id INTEGER NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	accuracy REAL NOT NULL,
	reported_at TIMESTAMP NOT NULL
);

CREATE TABLE challenges (
	id INTEGER PRIMARY KEY,
	rider_id INTEGER NOT NULL,
	type_id INTEGER NOT NULL,
	type_name TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	conditions TEXT NOT NULL,
	starts_at TIMESTAMP,
	ends_at TIMESTAMP,
	trips_completed INTEGER NOT NULL,
	earned_so_far REAL NOT NULL
);

CREATE TABLE challenge_tiers (
	challenge_id INTEGER NOT NULL,
	trip_count INTEGER NOT NULL,
	reward REAL NOT NULL
);
`

func newFleetDB(t *testing.T) *sql.DB {
	t.Helper()
	fleet, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening fleet db: %v", err)
	}
	fleet.SetMaxOpenConns(1)
	t.Cleanup(func() { fleet.Close() })

	if _, err := fleet.Exec(fleetSchema); err != nil {
		t.Fatalf("creating fleet schema: %v", err)
	}
	return fleet
}

func seedRider(t *testing.T, fleet *sql.DB) {
	t.Helper()
	now := time.Now().UTC()

	mustExec(t, fleet,
		`INSERT INTO riders VALUES (7, 'Ana Diaz', 2, 'Moto', 1, 'Monotributo', '20-12345678-9', 'CBU123', -34.60, -58.40, 'full_time')`)
	mustExec(t, fleet,
		`INSERT INTO trips (id, shift_id, rider_id, origin_address, dest_address,
		    origin_latitude, origin_longitude, dest_latitude, dest_longitude,
		    pickup_distance_km, delivery_distance_km, status_id, status_name, assigned_at)
		 VALUES (100, 50, 7, 'Av. Corrientes 1234', 'Defensa 500', -34.60, -58.39, -34.61, -58.37, 1.2, 3.4, 2, 'assigned', ?)`,
		now.Add(-20*time.Minute))
	mustExec(t, fleet,
		`INSERT INTO shifts VALUES (50, 7, ?, ?, ?, 2, 'Moto', 1, 1, 3, 0, 2, 5, 0, 1, 1, 4, 30, 1, 8000)`,
		now.Add(-2*time.Hour), now.Add(2*time.Hour), now.Add(-2*time.Hour))
	mustExec(t, fleet,
		`INSERT INTO rider_locations VALUES (7, -34.605, -58.395, 8.0, ?)`, now.Add(-time.Minute))
	mustExec(t, fleet,
		`INSERT INTO rider_locations VALUES (7, -34.610, -58.400, 12.0, ?)`, now.Add(-10*time.Minute))
	mustExec(t, fleet,
		`INSERT INTO challenges VALUES (900, 7, 1, 'Weekly volume', 'Weekend marathon', 'Deliver on the weekend.', 'Completed trips only.', ?, ?, 4, 1500)`,
		now.Add(-24*time.Hour), now.Add(48*time.Hour))
	mustExec(t, fleet, `INSERT INTO challenge_tiers VALUES (900, 5, 1500)`)
	mustExec(t, fleet, `INSERT INTO challenge_tiers VALUES (900, 10, 3500)`)
}

func mustExec(t *testing.T, fleet *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := fleet.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func TestSQLSource_Profile(t *testing.T) {
	fleet := newFleetDB(t)
	seedRider(t, fleet)
	src := NewSQLSource(fleet)
	ctx := context.Background()

	res := src.Profile(ctx, 7)
	if res.Status != StatusOK {
		t.Fatalf("profile status %v (err=%v)", res.Status, res.Err)
	}
	if res.Value.FullName != "Ana Diaz" || res.Value.VehicleName != "Moto" {
		t.Errorf("profile = %+v", res.Value)
	}

	if res := src.Profile(ctx, 999); res.Status != StatusNotFound {
		t.Errorf("unknown rider should be NotFound, got %v", res.Status)
	}
}

func TestSQLSource_ActiveTrips(t *testing.T) {
	fleet := newFleetDB(t)
	seedRider(t, fleet)
	src := NewSQLSource(fleet)
	ctx := context.Background()

	res := src.ActiveTrips(ctx, 7)
	if res.Status != StatusOK {
		t.Fatalf("trips status %v (err=%v)", res.Status, res.Err)
	}
	if len(res.Value) != 1 || res.Value[0].ID != 100 {
		t.Fatalf("trips = %+v", res.Value)
	}
	if res.Value[0].AssignedAt == nil {
		t.Error("assigned_at not scanned")
	}

	// Delivered trips are no longer active.
	mustExec(t, fleet, `UPDATE trips SET delivered_at = CURRENT_TIMESTAMP WHERE id = 100`)
	if res := src.ActiveTrips(ctx, 7); res.Status != StatusNotFound {
		t.Errorf("delivered trip should leave no active trips, got %v", res.Status)
	}
}

func TestSQLSource_ActiveShift(t *testing.T) {
	fleet := newFleetDB(t)
	seedRider(t, fleet)
	src := NewSQLSource(fleet)
	ctx := context.Background()

	res := src.ActiveShift(ctx, 7)
	if res.Status != StatusOK {
		t.Fatalf("shift status %v (err=%v)", res.Status, res.Err)
	}
	sh := res.Value
	if sh.ID != 50 || sh.DeliveredTrips != 3 || sh.GuaranteedEarnings != 8000 {
		t.Errorf("shift = %+v", sh)
	}
	if sh.ArrivedAt == nil {
		t.Error("arrived_at not scanned")
	}

	// A shift outside its window is not active.
	mustExec(t, fleet, `UPDATE shifts SET ends_at = ? WHERE id = 50`, time.Now().UTC().Add(-time.Hour))
	if res := src.ActiveShift(ctx, 7); res.Status != StatusNotFound {
		t.Errorf("expired shift should be NotFound, got %v", res.Status)
	}
}

func TestSQLSource_LocationReturnsNewestFix(t *testing.T) {
	fleet := newFleetDB(t)
	seedRider(t, fleet)
	src := NewSQLSource(fleet)

	res := src.Location(context.Background(), 7)
	if res.Status != StatusOK {
		t.Fatalf("location status %v (err=%v)", res.Status, res.Err)
	}
	if res.Value.Latitude != -34.605 {
		t.Errorf("expected the newest fix, got %+v", res.Value)
	}
}

func TestSQLSource_ActiveChallengesWithTiers(t *testing.T) {
	fleet := newFleetDB(t)
	seedRider(t, fleet)
	src := NewSQLSource(fleet)

	res := src.ActiveChallenges(context.Background(), 7)
	if res.Status != StatusOK {
		t.Fatalf("challenges status %v (err=%v)", res.Status, res.Err)
	}
	if len(res.Value) != 1 {
		t.Fatalf("challenges = %+v", res.Value)
	}
	c := res.Value[0]
	if c.Name != "Weekend marathon" || c.TripsCompleted != 4 {
		t.Errorf("challenge = %+v", c)
	}
	if len(c.Tiers) != 2 || c.Tiers[0].TripCount != 5 || c.Tiers[1].Reward != 3500 {
		t.Errorf("tiers = %+v", c.Tiers)
	}
}

func TestSQLSource_ChangeTripState(t *testing.T) {
	fleet := newFleetDB(t)
	seedRider(t, fleet)
	src := NewSQLSource(fleet)
	ctx := context.Background()

	// Someone else's trip is untouchable.
	if _, err := src.ChangeTripState(ctx, 8, 100, ActionCancel, "not mine"); err == nil {
		t.Error("trip of another rider must be rejected")
	}

	msg, err := src.ChangeTripState(ctx, 7, 100, ActionCancel, "store closed")
	if err != nil {
		t.Fatalf("ChangeTripState failed: %v", err)
	}
	if msg == "" {
		t.Error("expected a result message")
	}

	// The trip is no longer active, and a second change is rejected.
	if res := src.ActiveTrips(ctx, 7); res.Status != StatusNotFound {
		t.Errorf("cancelled trip still active: %v", res.Status)
	}
	if _, err := src.ChangeTripState(ctx, 7, 100, ActionRelease, ""); err == nil {
		t.Error("inactive trip must be rejected")
	}
}
