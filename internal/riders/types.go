package riders

import "time"

// Rider is the operational profile of a delivery rider.
type Rider struct {
	ID               int64   `json:"id"`
	FullName         string  `json:"full_name"`
	VehicleID        int64   `json:"vehicle_id"`
	VehicleName      string  `json:"vehicle_name"`
	TaxConditionID   int64   `json:"tax_condition_id"`
	TaxConditionName string  `json:"tax_condition_name"`
	TaxID            string  `json:"tax_id"`
	BankAccount      string  `json:"bank_account"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Modality         string  `json:"modality"`
}

// Trip is a single delivery assignment. A rider can carry more than one
// active trip at a time (stacked orders), so fetches return a slice.
type Trip struct {
	ID                 int64      `json:"id"`
	ShiftID            int64      `json:"shift_id"`
	RiderID            int64      `json:"rider_id"`
	OriginAddress      string     `json:"origin_address"`
	DestAddress        string     `json:"dest_address"`
	OriginLatitude     float64    `json:"origin_latitude"`
	OriginLongitude    float64    `json:"origin_longitude"`
	DestLatitude       float64    `json:"dest_latitude"`
	DestLongitude      float64    `json:"dest_longitude"`
	PickupDistanceKm   float64    `json:"pickup_distance_km"`
	DeliveryDistanceKm float64    `json:"delivery_distance_km"`
	StatusID           int64      `json:"status_id"`
	StatusName         string     `json:"status_name"`
	AssignedAt         *time.Time `json:"assigned_at,omitempty"`
	ArrivedStoreAt     *time.Time `json:"arrived_store_at,omitempty"`
	LeftStoreAt        *time.Time `json:"left_store_at,omitempty"`
	ArrivedCustomerAt  *time.Time `json:"arrived_customer_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
}

// Shift is a rider's active reservation window, including the counters used
// to evaluate the guaranteed-earnings conditions.
type Shift struct {
	ID                  int64      `json:"id"`
	From                time.Time  `json:"from"`
	Until               time.Time  `json:"until"`
	ArrivedAt           *time.Time `json:"arrived_at,omitempty"`
	VehicleID           int64      `json:"vehicle_id"`
	VehicleName         string     `json:"vehicle_name"`
	AutoAccept          bool       `json:"auto_accept"`
	Available           bool       `json:"available"`
	DeliveredTrips      int        `json:"delivered_trips"`
	Rejections          int        `json:"rejections"`
	MaxRejections       int        `json:"max_rejections"`
	MinTripsGuaranteed  int        `json:"min_trips_guaranteed"`
	MeetsMinTrips       bool       `json:"meets_min_trips"`
	MeetsRejectionLimit bool       `json:"meets_rejection_limit"`
	MeetsPunctuality    bool       `json:"meets_punctuality"`
	MinutesOffline      int        `json:"minutes_offline"`
	MaxMinutesOffline   int        `json:"max_minutes_offline"`
	MeetsConnection     bool       `json:"meets_connection"`
	GuaranteedEarnings  float64    `json:"guaranteed_earnings"`
}

// LocationFix is the most recent GPS position reported for a rider.
type LocationFix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// ChallengeTier is one reward level of a challenge: complete TripCount trips,
// earn Reward.
type ChallengeTier struct {
	TripCount int     `json:"trip_count"`
	Reward    float64 `json:"reward"`
}

// Challenge is an active bonus program a rider can participate in.
type Challenge struct {
	ID             int64           `json:"id"`
	TypeID         int64           `json:"type_id"`
	TypeName       string          `json:"type_name"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Conditions     string          `json:"conditions"`
	StartsAt       *time.Time      `json:"starts_at,omitempty"`
	EndsAt         *time.Time      `json:"ends_at,omitempty"`
	TripsCompleted int             `json:"trips_completed"`
	EarnedSoFar    float64         `json:"earned_so_far"`
	Tiers          []ChallengeTier `json:"tiers,omitempty"`
}
