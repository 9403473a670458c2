package riders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLSource reads operational context from a relational replica of the fleet
// database. The schema is owned by the upstream system; this source only
// queries it. Works against any database/sql driver, exercised in tests with
// modernc.org/sqlite.
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource wraps an open database handle.
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

func (s *SQLSource) Profile(ctx context.Context, riderID int64) Result[*Rider] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[*Rider](err)
	}

	var r Rider
	err := s.db.QueryRowContext(ctx,
		`SELECT id, full_name, vehicle_id, vehicle_name, tax_condition_id, tax_condition_name,
		        tax_id, bank_account, latitude, longitude, modality
		 FROM riders WHERE id = ?`, riderID,
	).Scan(&r.ID, &r.FullName, &r.VehicleID, &r.VehicleName, &r.TaxConditionID,
		&r.TaxConditionName, &r.TaxID, &r.BankAccount, &r.Latitude, &r.Longitude, &r.Modality)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound[*Rider]()
	}
	if err != nil {
		return Failed[*Rider](fmt.Errorf("querying rider %d: %w", riderID, err))
	}
	return OK(&r)
}

func (s *SQLSource) ActiveTrips(ctx context.Context, riderID int64) Result[[]Trip] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[[]Trip](err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, shift_id, rider_id, origin_address, dest_address,
		        origin_latitude, origin_longitude, dest_latitude, dest_longitude,
		        pickup_distance_km, delivery_distance_km, status_id, status_name, assigned_at
		 FROM trips WHERE rider_id = ? AND delivered_at IS NULL AND cancelled_at IS NULL
		 ORDER BY assigned_at`, riderID)
	if err != nil {
		return Failed[[]Trip](fmt.Errorf("querying trips for rider %d: %w", riderID, err))
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var t Trip
		var assigned sql.NullTime
		if err := rows.Scan(&t.ID, &t.ShiftID, &t.RiderID, &t.OriginAddress, &t.DestAddress,
			&t.OriginLatitude, &t.OriginLongitude, &t.DestLatitude, &t.DestLongitude,
			&t.PickupDistanceKm, &t.DeliveryDistanceKm, &t.StatusID, &t.StatusName, &assigned); err != nil {
			return Failed[[]Trip](fmt.Errorf("scanning trip: %w", err))
		}
		if assigned.Valid {
			at := assigned.Time
			t.AssignedAt = &at
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return Failed[[]Trip](fmt.Errorf("iterating trips: %w", err))
	}
	if len(trips) == 0 {
		return NotFound[[]Trip]()
	}
	return OK(trips)
}

func (s *SQLSource) ActiveShift(ctx context.Context, riderID int64) Result[*Shift] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[*Shift](err)
	}

	var sh Shift
	var arrived sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, starts_at, ends_at, arrived_at, vehicle_id, vehicle_name, auto_accept, available,
		        delivered_trips, rejections, max_rejections, min_trips_guaranteed,
		        meets_min_trips, meets_rejection_limit, meets_punctuality,
		        minutes_offline, max_minutes_offline, meets_connection, guaranteed_earnings
		 FROM shifts
		 WHERE rider_id = ? AND starts_at <= ? AND ends_at >= ?
		 ORDER BY starts_at DESC LIMIT 1`,
		riderID, time.Now().UTC(), time.Now().UTC(),
	).Scan(&sh.ID, &sh.From, &sh.Until, &arrived, &sh.VehicleID, &sh.VehicleName,
		&sh.AutoAccept, &sh.Available, &sh.DeliveredTrips, &sh.Rejections, &sh.MaxRejections,
		&sh.MinTripsGuaranteed, &sh.MeetsMinTrips, &sh.MeetsRejectionLimit, &sh.MeetsPunctuality,
		&sh.MinutesOffline, &sh.MaxMinutesOffline, &sh.MeetsConnection, &sh.GuaranteedEarnings)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound[*Shift]()
	}
	if err != nil {
		return Failed[*Shift](fmt.Errorf("querying shift for rider %d: %w", riderID, err))
	}
	if arrived.Valid {
		at := arrived.Time
		sh.ArrivedAt = &at
	}
	return OK(&sh)
}

func (s *SQLSource) Location(ctx context.Context, riderID int64) Result[*LocationFix] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[*LocationFix](err)
	}

	var loc LocationFix
	err := s.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, accuracy, reported_at
		 FROM rider_locations WHERE rider_id = ?
		 ORDER BY reported_at DESC LIMIT 1`, riderID,
	).Scan(&loc.Latitude, &loc.Longitude, &loc.Accuracy, &loc.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound[*LocationFix]()
	}
	if err != nil {
		return Failed[*LocationFix](fmt.Errorf("querying location for rider %d: %w", riderID, err))
	}
	return OK(&loc)
}

func (s *SQLSource) ActiveChallenges(ctx context.Context, riderID int64) Result[[]Challenge] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[[]Challenge](err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type_id, type_name, name, description, conditions,
		        starts_at, ends_at, trips_completed, earned_so_far
		 FROM challenges
		 WHERE rider_id = ? AND ends_at >= ?
		 ORDER BY ends_at`, riderID, time.Now().UTC())
	if err != nil {
		return Failed[[]Challenge](fmt.Errorf("querying challenges for rider %d: %w", riderID, err))
	}
	defer rows.Close()

	var challenges []Challenge
	for rows.Next() {
		var c Challenge
		var starts, ends sql.NullTime
		if err := rows.Scan(&c.ID, &c.TypeID, &c.TypeName, &c.Name, &c.Description, &c.Conditions,
			&starts, &ends, &c.TripsCompleted, &c.EarnedSoFar); err != nil {
			return Failed[[]Challenge](fmt.Errorf("scanning challenge: %w", err))
		}
		if starts.Valid {
			at := starts.Time
			c.StartsAt = &at
		}
		if ends.Valid {
			at := ends.Time
			c.EndsAt = &at
		}
		challenges = append(challenges, c)
	}
	if err := rows.Err(); err != nil {
		return Failed[[]Challenge](fmt.Errorf("iterating challenges: %w", err))
	}

	for i := range challenges {
		tiers, err := s.challengeTiers(ctx, challenges[i].ID)
		if err != nil {
			return Failed[[]Challenge](err)
		}
		challenges[i].Tiers = tiers
	}
	return OK(challenges)
}

func (s *SQLSource) challengeTiers(ctx context.Context, challengeID int64) ([]ChallengeTier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trip_count, reward FROM challenge_tiers
		 WHERE challenge_id = ? ORDER BY trip_count`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("querying tiers for challenge %d: %w", challengeID, err)
	}
	defer rows.Close()

	var tiers []ChallengeTier
	for rows.Next() {
		var t ChallengeTier
		if err := rows.Scan(&t.TripCount, &t.Reward); err != nil {
			return nil, fmt.Errorf("scanning tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// ChangeTripState applies a confirmed state change to one of the rider's
// active trips. The trip must still be active and assigned to the rider.
func (s *SQLSource) ChangeTripState(ctx context.Context, riderID, tripID int64, action, reason string) (string, error) {
	if err := ValidateRiderID(riderID); err != nil {
		return "", err
	}
	if !ValidAction(action) {
		return "", fmt.Errorf("unknown trip action %q", action)
	}

	var res sql.Result
	var err error
	switch action {
	case ActionRelease:
		res, err = s.db.ExecContext(ctx,
			`UPDATE trips SET rider_id = NULL, status_id = 1, status_name = 'pending'
			 WHERE id = ? AND rider_id = ? AND delivered_at IS NULL AND cancelled_at IS NULL`,
			tripID, riderID)
	case ActionCancel:
		res, err = s.db.ExecContext(ctx,
			`UPDATE trips SET cancelled_at = CURRENT_TIMESTAMP, cancel_reason = ?,
			        status_id = 5, status_name = 'cancelled'
			 WHERE id = ? AND rider_id = ? AND delivered_at IS NULL AND cancelled_at IS NULL`,
			reason, tripID, riderID)
	case ActionNotDelivered:
		res, err = s.db.ExecContext(ctx,
			`UPDATE trips SET delivered_at = CURRENT_TIMESTAMP, delivery_failed = 1, cancel_reason = ?,
			        status_id = 6, status_name = 'not_delivered'
			 WHERE id = ? AND rider_id = ? AND delivered_at IS NULL AND cancelled_at IS NULL`,
			reason, tripID, riderID)
	}
	if err != nil {
		return "", fmt.Errorf("applying %s to trip %d: %w", action, tripID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("applying %s to trip %d: %w", action, tripID, err)
	}
	if affected == 0 {
		return "", fmt.Errorf("trip %d is not an active trip of rider %d", tripID, riderID)
	}
	return fmt.Sprintf("Trip %d updated: %s applied.", tripID, action), nil
}
