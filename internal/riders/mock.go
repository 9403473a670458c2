package riders

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// MockSource serves deterministic synthetic data seeded by rider id. It is
// the evaluation-mode implementation of ContextSource and TripManager: the
// same rider id always yields the same records, so tests and offline
// evaluations are reproducible without any backing store.
type MockSource struct {
	now func() time.Time
}

// NewMockSource creates a mock source. A nil clock defaults to time.Now.
func NewMockSource(clock func() time.Time) *MockSource {
	if clock == nil {
		clock = time.Now
	}
	return &MockSource{now: clock}
}

func (m *MockSource) Profile(ctx context.Context, riderID int64) Result[*Rider] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[*Rider](err)
	}
	rng := rand.New(rand.NewSource(riderID))

	vehicleID := int64(1)
	vehicleName := "Motorcycle"
	if rng.Intn(2) == 1 {
		vehicleID = 4
		vehicleName = "Bicycle"
	}

	taxCondition := int64(rng.Intn(3))
	taxName := [...]string{"Unregistered", "Simplified regime", "Registered taxpayer"}[taxCondition]

	modality := "Standard and on-demand deliveries"
	if rng.Intn(2) == 1 {
		modality = "On-demand deliveries"
	}

	return OK(&Rider{
		ID:               riderID,
		FullName:         fmt.Sprintf("Test Rider %d", riderID),
		VehicleID:        vehicleID,
		VehicleName:      vehicleName,
		TaxConditionID:   taxCondition,
		TaxConditionName: taxName,
		TaxID:            "12345678901",
		BankAccount:      "1234567890123456789012",
		Latitude:         mockLatitude(rng),
		Longitude:        mockLongitude(rng),
		Modality:         modality,
	})
}

func (m *MockSource) ActiveTrips(ctx context.Context, riderID int64) Result[[]Trip] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[[]Trip](err)
	}
	rng := rand.New(rand.NewSource(riderID + 1))

	// Roughly a third of mock riders are idle.
	n := rng.Intn(3)
	if n == 0 {
		return NotFound[[]Trip]()
	}

	now := m.now()
	trips := make([]Trip, n)
	for i := range trips {
		assigned := now.Add(-time.Duration(10+rng.Intn(30)) * time.Minute)
		trips[i] = Trip{
			ID:                 riderID*100 + int64(i) + 1,
			ShiftID:            riderID*10 + 1,
			RiderID:            riderID,
			OriginAddress:      fmt.Sprintf("Store %d, Av. Corrientes %d", i+1, 1000+rng.Intn(4000)),
			DestAddress:        fmt.Sprintf("Av. Rivadavia %d", 2000+rng.Intn(6000)),
			OriginLatitude:     mockLatitude(rng),
			OriginLongitude:    mockLongitude(rng),
			DestLatitude:       mockLatitude(rng),
			DestLongitude:      mockLongitude(rng),
			PickupDistanceKm:   0.5 + rng.Float64()*2,
			DeliveryDistanceKm: 1 + rng.Float64()*5,
			StatusID:           2,
			StatusName:         "In progress",
			AssignedAt:         &assigned,
		}
	}
	return OK(trips)
}

func (m *MockSource) ActiveShift(ctx context.Context, riderID int64) Result[*Shift] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[*Shift](err)
	}
	rng := rand.New(rand.NewSource(riderID + 2))

	if rng.Intn(4) == 0 {
		return NotFound[*Shift]()
	}

	now := m.now()
	from := now.Add(-2 * time.Hour)
	arrived := from.Add(time.Duration(rng.Intn(10)) * time.Minute)
	delivered := rng.Intn(8)

	return OK(&Shift{
		ID:                  riderID*10 + 1,
		From:                from,
		Until:               now.Add(2 * time.Hour),
		ArrivedAt:           &arrived,
		VehicleID:           1,
		VehicleName:         "Motorcycle",
		AutoAccept:          rng.Intn(2) == 1,
		Available:           true,
		DeliveredTrips:      delivered,
		Rejections:          rng.Intn(3),
		MaxRejections:       3,
		MinTripsGuaranteed:  6,
		MeetsMinTrips:       delivered >= 6,
		MeetsRejectionLimit: true,
		MeetsPunctuality:    true,
		MinutesOffline:      rng.Intn(15),
		MaxMinutesOffline:   30,
		MeetsConnection:     true,
		GuaranteedEarnings:  8000,
	})
}

func (m *MockSource) Location(ctx context.Context, riderID int64) Result[*LocationFix] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[*LocationFix](err)
	}
	rng := rand.New(rand.NewSource(riderID + 3))

	return OK(&LocationFix{
		Latitude:  mockLatitude(rng),
		Longitude: mockLongitude(rng),
		Accuracy:  5 + rng.Float64()*15,
		Timestamp: m.now(),
	})
}

func (m *MockSource) ActiveChallenges(ctx context.Context, riderID int64) Result[[]Challenge] {
	if err := ValidateRiderID(riderID); err != nil {
		return Failed[[]Challenge](err)
	}
	rng := rand.New(rand.NewSource(riderID + 4))

	if rng.Intn(3) == 0 {
		return OK([]Challenge{})
	}

	now := m.now()
	starts := now.Add(-72 * time.Hour)
	ends := now.Add(96 * time.Hour)
	completed := rng.Intn(15)

	return OK([]Challenge{
		{
			ID:             riderID*1000 + 1,
			TypeID:         1,
			TypeName:       "Weekly volume",
			Name:           "Weekend marathon",
			Description:    "Complete deliveries over the weekend to unlock tiered bonuses.",
			Conditions:     "Completed deliveries only; cancelled trips do not count.",
			StartsAt:       &starts,
			EndsAt:         &ends,
			TripsCompleted: completed,
			EarnedSoFar:    float64(completed/5) * 1500,
			Tiers: []ChallengeTier{
				{TripCount: 5, Reward: 1500},
				{TripCount: 10, Reward: 3500},
				{TripCount: 20, Reward: 8000},
			},
		},
	})
}

// ChangeTripState pretends to apply the state change. Mock trips always
// accept valid actions.
func (m *MockSource) ChangeTripState(ctx context.Context, riderID, tripID int64, action, reason string) (string, error) {
	if err := ValidateRiderID(riderID); err != nil {
		return "", err
	}
	if !ValidAction(action) {
		return "", fmt.Errorf("unknown trip action %q", action)
	}
	return fmt.Sprintf("Trip %d updated: %s applied.", tripID, action), nil
}

// Mock coordinates fall inside the Buenos Aires metropolitan area.
func mockLatitude(rng *rand.Rand) float64 {
	return -34.7056 + rng.Float64()*(34.7056-34.5265)
}

func mockLongitude(rng *rand.Rand) float64 {
	return -58.5315 + rng.Float64()*(58.5315-58.3314)
}
